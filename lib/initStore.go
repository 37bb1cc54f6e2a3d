package lib

import (
	"github.com/ether/easysync/lib/db"
	pad2 "github.com/ether/easysync/lib/pad"
	"github.com/ether/easysync/lib/settings"
	"github.com/ether/easysync/lib/ws"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InitStore carries the components the HTTP routes are built from.
type InitStore struct {
	C                 *fiber.App
	RetrievedSettings *settings.Settings
	Store             db.DataStore
	Handler           *ws.PadMessageHandler
	PadManager        *pad2.Manager
	Validator         *validator.Validate
	Logger            *zap.SugaredLogger
}
