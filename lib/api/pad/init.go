package pad

import (
	"errors"
	"net/http"

	"github.com/ether/easysync/lib"
	apiError "github.com/ether/easysync/lib/api/errors"
	utils2 "github.com/ether/easysync/lib/api/utils"
	"github.com/ether/easysync/lib/apool"
	modelpad "github.com/ether/easysync/lib/models/pad"
	"github.com/ether/easysync/lib/utils"
	"github.com/gofiber/fiber/v2"
)

type PadResponse struct {
	PadId          string             `json:"padId"`
	Head           int                `json:"head"`
	Text           string             `json:"text"`
	Attribs        string             `json:"attribs"`
	Pool           apool.JsonablePool `json:"pool"`
	Authors        []string           `json:"authors"`
	ConnectedUsers int                `json:"connectedUsers"`
}

type RevisionResponse struct {
	PadId     string `json:"padId"`
	Rev       int    `json:"rev"`
	Changeset string `json:"changeset"`
	Author    string `json:"author,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	Attribs   string `json:"attribs"`
}

type PadListResponse struct {
	PadIds []string `json:"padIds"`
}

type TextRequest struct {
	Text     string `json:"text"`
	Mode     string `json:"mode" validate:"omitempty,oneof=set append"`
	AuthorId string `json:"authorId" validate:"omitempty,startswith=a.,max=100"`
}

type HeadResponse struct {
	Head int `json:"head"`
}

type CopyRequest struct {
	Destination string `json:"destination" validate:"required,max=100"`
	Force       bool   `json:"force"`
	AuthorId    string `json:"authorId" validate:"omitempty,startswith=a.,max=100"`
}

func sendError(c *fiber.Ctx, e apiError.Error) error {
	return c.Status(e.Error).JSON(e)
}

func Init(store *lib.InitStore) {
	manager := store.PadManager
	logger := store.Logger

	app := store.C

	app.Get("/api/pads", func(c *fiber.Ctx) error {
		padIds, err := manager.ListPads()
		if err != nil {
			logger.Errorf("error listing pads: %v", err)
			return sendError(c, apiError.InternalServerError)
		}
		return c.JSON(PadListResponse{PadIds: padIds})
	})

	app.Get("/api/pads/:padId", func(c *fiber.Ctx) error {
		padId := c.Params("padId")
		if err := utils2.CheckPad(padId, true, manager); err != nil {
			return sendError(c, apiError.FromPadError(err))
		}

		var response PadResponse
		err := manager.ReadPad(padId, func(p *modelpad.Pad) error {
			response = PadResponse{
				PadId:   padId,
				Head:    p.Head,
				Text:    p.AText.Text,
				Attribs: p.AText.Attribs,
				Pool:    p.Pool.ToJsonable(),
				Authors: p.GetAllAuthors(),
			}
			return nil
		})
		if err != nil {
			return sendError(c, apiError.FromPadError(err))
		}
		response.ConnectedUsers = store.Handler.ConnectedUsers(padId)
		return c.JSON(response)
	})

	app.Get("/api/pads/:padId/text", func(c *fiber.Ctx) error {
		padId := c.Params("padId")
		if err := utils2.CheckPad(padId, true, manager); err != nil {
			return sendError(c, apiError.FromPadError(err))
		}

		var text string
		err := manager.ReadPad(padId, func(p *modelpad.Pad) error {
			optRev := c.Query("rev")
			if optRev == "" {
				text = p.Text()
				return nil
			}
			revNum, err := utils.CheckValidRev(optRev)
			if err != nil {
				return err
			}
			if *revNum > p.Head {
				return errRevisionAfterHead
			}
			atext, err := p.GetInternalRevisionAText(*revNum)
			if err != nil {
				return err
			}
			text = atext.Text
			return nil
		})
		if err != nil {
			return sendError(c, revisionError(err))
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(text)
	})

	app.Get("/api/pads/:padId/revisions/:rev", func(c *fiber.Ctx) error {
		padId := c.Params("padId")
		revNum, err := utils.CheckValidRev(c.Params("rev"))
		if err != nil {
			return sendError(c, apiError.InvalidRevisionError)
		}
		if err := utils2.CheckPad(padId, true, manager); err != nil {
			return sendError(c, apiError.FromPadError(err))
		}

		var response RevisionResponse
		err = manager.ReadPad(padId, func(p *modelpad.Pad) error {
			if *revNum > p.Head {
				return errRevisionAfterHead
			}
			revision, err := p.GetRevision(*revNum)
			if err != nil {
				return err
			}
			atext, err := p.GetInternalRevisionAText(*revNum)
			if err != nil {
				return err
			}
			response = RevisionResponse{
				PadId:     padId,
				Rev:       *revNum,
				Changeset: revision.Changeset,
				Timestamp: revision.Timestamp,
				Text:      atext.Text,
				Attribs:   atext.Attribs,
			}
			if revision.AuthorId != nil {
				response.Author = *revision.AuthorId
			}
			return nil
		})
		if err != nil {
			logger.Debugf("error reading revision %d of pad %s: %v", *revNum, padId, err)
			return sendError(c, revisionError(err))
		}
		return c.JSON(response)
	})

	app.Post("/api/pads/:padId/text", func(c *fiber.Ctx) error {
		padId := c.Params("padId")
		var request TextRequest
		if err := c.BodyParser(&request); err != nil {
			return sendError(c, apiError.InvalidRequestError)
		}
		if err := store.Validator.Struct(request); err != nil {
			return sendError(c, apiError.NewValidationError(err))
		}
		if !manager.IsValidPadId(padId) {
			return sendError(c, apiError.InvalidPadIdError)
		}

		var authorId *string
		if request.AuthorId != "" {
			authorId = &request.AuthorId
		}
		var head int
		var err error
		if request.Mode == "append" {
			head, err = manager.AppendText(padId, request.Text, authorId)
		} else {
			head, err = manager.SetText(padId, request.Text, authorId)
		}
		if err != nil {
			logger.Warnf("error writing text of pad %s: %v", padId, err)
			return sendError(c, apiError.FromPadError(err))
		}
		return c.JSON(HeadResponse{Head: head})
	})

	app.Post("/api/pads/:padId/copy", func(c *fiber.Ctx) error {
		padId := c.Params("padId")
		var request CopyRequest
		if err := c.BodyParser(&request); err != nil {
			return sendError(c, apiError.InvalidRequestError)
		}
		if err := store.Validator.Struct(request); err != nil {
			return sendError(c, apiError.NewValidationError(err))
		}
		if err := utils2.CheckPad(padId, true, manager); err != nil {
			return sendError(c, apiError.FromPadError(err))
		}

		var authorId *string
		if request.AuthorId != "" {
			authorId = &request.AuthorId
		}
		if request.Force {
			store.Handler.KickSessionsFromPad(request.Destination)
		}
		if err := manager.CopyPadWithoutHistory(padId, request.Destination, request.Force, authorId); err != nil {
			return sendError(c, apiError.FromPadError(err))
		}
		logger.Infof("copied pad %s to %s", padId, request.Destination)
		return c.SendStatus(http.StatusCreated)
	})

	app.Delete("/api/pads/:padId", func(c *fiber.Ctx) error {
		padId := c.Params("padId")
		if err := utils2.CheckPad(padId, true, manager); err != nil {
			return sendError(c, apiError.FromPadError(err))
		}
		store.Handler.KickSessionsFromPad(padId)
		if err := manager.RemovePad(padId); err != nil {
			logger.Errorf("error removing pad %s: %v", padId, err)
			return sendError(c, apiError.InternalServerError)
		}
		logger.Infof("removed pad %s", padId)
		return c.SendStatus(http.StatusNoContent)
	})
}

var errRevisionAfterHead = errors.New("revision number is higher than head")

func revisionError(err error) apiError.Error {
	switch {
	case errors.Is(err, errRevisionAfterHead):
		return apiError.RevisionHigherThanHeadError
	case errors.Is(err, utils.ErrInvalidRev):
		return apiError.InvalidRevisionError
	default:
		return apiError.FromPadError(err)
	}
}
