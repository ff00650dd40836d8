package http

import (
	"github.com/notify-gateway/internal/infrastructure/dynamo"
	jwtinfra "github.com/notify-gateway/internal/infrastructure/jwt"
	s3infra "github.com/notify-gateway/internal/infrastructure/s3"
	smtpinfra "github.com/notify-gateway/internal/infrastructure/smtp"
	snsinfra "github.com/notify-gateway/internal/infrastructure/sns"
	"github.com/notify-gateway/internal/template"
)

// Deps holds all infrastructure dependencies for the router. Optional pieces
// (JWTProvider, Publisher) may be nil; the routes or channels that need them
// degrade instead of failing startup.
type Deps struct {
	OTPRepo           *dynamo.OTPRepo
	VerifiedEmailRepo *dynamo.VerifiedEmailRepo
	NotificationRepo  *dynamo.NotificationRepo
	Archive           *s3infra.Archive
	Mailer            smtpinfra.Mailer
	Publisher         snsinfra.Publisher
	JWTProvider       *jwtinfra.Provider
	Templates         *template.Registry
}
