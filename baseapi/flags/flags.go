package flags

import "github.com/MagicGrants/donatehub/internal/config"

var (
	ListenHost = config.GenFlag[string]("server.listen.host", "localhost", "Host to listen to")
	ListenPort = config.GenFlag[int]("server.listen.port", 8070, "Port to listen on")
)

// stripe
var (
	StripeSecretKey = config.GenFlag[string]("integrations.stripe.secret_key", "", "Stripe secret API key")

	// Webhook endpoints are registered per fund, each with its own secret.
	StripeWebhookSecrets = config.GenFlag[map[string]string]("integrations.stripe.webhook_secrets", map[string]string{}, "Stripe webhook signing secrets, keyed by fund slug")

	StripeSuccessURL = config.GenFlag[string]("integrations.stripe.success_url", "", "Redirect URL after a successful checkout")
	StripeCancelURL  = config.GenFlag[string]("integrations.stripe.cancel_url", "", "Redirect URL after an abandoned checkout")
)

// btcpay
var (
	BTCPayHost          = config.GenFlag[string]("integrations.btcpay.host", "", "BTCPay Server base URL")
	BTCPayStoreID       = config.GenFlag[string]("integrations.btcpay.store_id", "", "BTCPay Server store ID")
	BTCPayAPIKey        = config.GenFlag[string]("integrations.btcpay.api_key", "", "BTCPay Server API key")
	BTCPayWebhookSecret = config.GenFlag[string]("integrations.btcpay.webhook_secret", "", "Shared secret for BTCPay webhook signatures")
)

// fulfillment
var (
	PrintfulAPIKey        = config.GenFlag[string]("integrations.printful.api_key", "", "Printful API key")
	PrintfulWebhookSecret = config.GenFlag[string]("integrations.printful.webhook_secret", "", "Shared secret for the Printful webhook query param")

	FulfillmentQueueSize = config.GenFlag[int]("behavior.fulfillment.queue_size", 64, "Maximum number of pending physical perk purchases")
)

// catalog
var (
	StrapiHost  = config.GenFlag[string]("integrations.strapi.host", "", "Strapi base URL")
	StrapiToken = config.GenFlag[string]("integrations.strapi.token", "", "Strapi API token")
)

// attestation
var (
	// Hex-encoded Ed25519 seed (32 bytes). Read once at startup, never logged.
	AttestationPrivateKey = config.GenFlag[string]("attestation.private_key", "", "Ed25519 private key seed for donation attestations")
)

// email
var (
	EmailEnabled = config.GenFlag[bool]("email.enabled", false, "Send notification emails")
	EmailHost    = config.GenFlag[string]("email.host", "", "SMTP host:port")
	EmailUser    = config.GenFlag[string]("email.username", "", "SMTP username")
	EmailPwd     = config.GenFlag[string]("email.password", "", "SMTP password")
	EmailFrom    = config.GenFlag[string]("email.from", "noreply@magicgrants.org", "From address for notifications")
)

// db
var (
	DatabaseDSN    = config.GenFlag[string]("db.dsn", "sslmode=disable user=donatehub dbname=donatehub", "PostgreSQL connection string")
	MigrateOnStart = config.GenFlag[bool]("behavior.db.run_migrations", true, "Run PostgreSQL migrations on platform start")
)
