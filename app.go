package main

import (
	"fmt"
	"log/slog"
	"os"

	"gorm.io/gorm"

	"partsmarket/config"
	"partsmarket/database"
	"partsmarket/internal/domain/outbox"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/infra/mail"
	"partsmarket/internal/infra/paystack"
	"partsmarket/internal/infra/stripe"
	"partsmarket/internal/service/checkout"
	"partsmarket/internal/service/invoicing"
	"partsmarket/internal/service/relay"
	"partsmarket/internal/service/settlement"
)

// app holds the wired services shared by every command.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *gorm.DB
	gateway    payments.Gateway
	settler    *settlement.Settler
	sender     *invoicing.Sender
	dispatcher *relay.Dispatcher
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.AppEnv == "development" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", "partsmarket", "env", cfg.AppEnv)
}

func newGateway(cfg *config.Config) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case payments.ProviderPaystack:
		return paystack.New(cfg.PaystackSecret, cfg.PaystackBaseURL, cfg.HTTPTimeout), nil
	case payments.ProviderStripe:
		return stripe.New(cfg.StripeSecretKey, cfg.AppURL), nil
	}
	return nil, fmt.Errorf("unsupported PAYMENT_PROVIDER %q", cfg.PaymentProvider)
}

func buildApp() (*app, error) {
	cfg := config.Load()
	log := newLogger(cfg)

	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	gateway, err := newGateway(cfg)
	if err != nil {
		return nil, err
	}
	mailer, err := mail.New(cfg, log)
	if err != nil {
		return nil, err
	}

	sender := invoicing.NewSender(db, mailer, log)
	dispatcher := relay.NewDispatcher(db, log, relay.OptionsFrom(cfg))
	dispatcher.Handle(outbox.KindInvoiceSend, sender.OutboxHandler())

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		gateway:    gateway,
		settler:    settlement.New(db, log),
		sender:     sender,
		dispatcher: dispatcher,
	}, nil
}

func (a *app) initializer() *checkout.Initializer {
	return checkout.NewInitializer(a.db, a.gateway, a.cfg.ReferencePrefix, a.cfg.Currency, a.log)
}

func (a *app) verifier() *checkout.Verifier {
	return checkout.NewVerifier(a.db, a.gateway, a.settler, a.log)
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
