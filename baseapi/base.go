package baseapi

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/MagicGrants/donatehub/db"
	"github.com/MagicGrants/donatehub/email"
	"github.com/MagicGrants/donatehub/integrations/btcpay"
	"github.com/MagicGrants/donatehub/integrations/printful"
	"github.com/MagicGrants/donatehub/integrations/strapi"
	"github.com/Yiling-J/theine-go"
	"github.com/stripe/stripe-go/v74"
)

type BaseAPI struct {
	db     donatehub.DB
	mailer donatehub.Mailer

	catalog   donatehub.PerkCatalog
	fulfiller donatehub.FulfillmentProvider
	crypto    donatehub.CryptoProcessor

	perkCache *theine.LoadingCache[string, *donatehub.Perk]

	attestKey ed25519.PrivateKey

	fulfillCh chan *fulfillmentJob
}

func (s *BaseAPI) Start(ctx context.Context) {
	go s.fulfillmentWorker(ctx)
}

func (s *BaseAPI) Close() error {
	if db, ok := s.db.(*db.DB); ok {
		if err := db.Close(); err != nil {
			return fmt.Errorf("couldn't close DB: %w", err)
		}
	}
	return nil
}

func GetBaseAPI(db donatehub.DB, mailer donatehub.Mailer, catalog donatehub.PerkCatalog, fulfiller donatehub.FulfillmentProvider, crypto donatehub.CryptoProcessor) (*BaseAPI, error) {
	base := &BaseAPI{
		db:     db,
		mailer: mailer,

		catalog:   catalog,
		fulfiller: fulfiller,
		crypto:    crypto,

		fulfillCh: make(chan *fulfillmentJob, flags.FulfillmentQueueSize.Value()),
	}

	perkCache, err := theine.NewBuilder[string, *donatehub.Perk](200).BuildWithLoader(func(ctx context.Context, id string) (theine.Loaded[*donatehub.Perk], error) {
		perk, err := catalog.Perk(ctx, id)
		if err != nil {
			return theine.Loaded[*donatehub.Perk]{}, err
		}
		return theine.Loaded[*donatehub.Perk]{
			Value: perk,
			Cost:  1,
			TTL:   time.Minute,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not build perk cache: %w", err)
	}
	base.perkCache = perkCache

	if seed := flags.AttestationPrivateKey.Value(); seed != "" {
		key, err := parseAttestationKey(seed)
		if err != nil {
			return nil, err
		}
		base.attestKey = key
	}

	return base, nil
}

func InitializeBaseAPI(ctx context.Context) (*BaseAPI, error) {
	dbClient, err := db.NewPSQL(ctx, flags.DatabaseDSN.Value())
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to DB: %w", err)
	}
	slog.InfoContext(ctx, "Connected to DB")

	if flags.MigrateOnStart.Value() {
		if err := dbClient.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("couldn't run migrations: %w", err)
		}
	}

	var mailer donatehub.Mailer
	if flags.EmailEnabled.Value() {
		m, err := email.NewMailer()
		if err != nil {
			slog.WarnContext(ctx, "Couldn't initialize mailer. Make sure you entered the correct information", slog.Any("err", err))
		}
		mailer = m
	}

	stripe.Key = flags.StripeSecretKey.Value()

	return GetBaseAPI(dbClient, mailer, strapi.NewClient(), printful.NewClient(), btcpay.NewClient())
}

func parseAttestationKey(seedHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("attestation key is not valid hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("attestation key must be a %d-byte seed, got %d bytes", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// sendEmail delivers a notification without ever failing the financial
// operation that triggered it.
func (s *BaseAPI) sendEmail(ctx context.Context, msg *donatehub.MailerMessage) {
	if s.mailer == nil || msg.To == "" {
		return
	}
	go func() {
		if err := s.mailer.SendEmail(context.WithoutCancel(ctx), msg); err != nil {
			slog.WarnContext(ctx, "Couldn't send notification email", slog.Any("err", err), slog.String("subject", msg.Subject))
		}
	}()
}
