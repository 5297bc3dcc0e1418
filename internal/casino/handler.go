package casino

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// KeyStore reserves idempotency keys; Reserve reports false when the key was
// already taken. Release frees a key whose request did not go through.
type KeyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const IdempotencyHeader = "Idempotency-Key"

func RegisterRoutes(r fiber.Router, service *Service, board *Leaderboard, keys KeyStore, keyTTL time.Duration) {

	r.Post("/place_bet", func(c *fiber.Ctx) error {

		type Req struct {
			Amount float64 `json:"amount"`
		}

		var body Req
		if err := c.BodyParser(&body); err != nil {
			return fail(c, ErrInvalidStake)
		}

		if body.Amount != math.Trunc(body.Amount) || body.Amount > 1e15 {
			return fail(c, ErrInvalidStake)
		}
		stake := int64(body.Amount)
		if err := service.risk.Validate(stake); err != nil {
			return fail(c, err)
		}

		uid := c.Locals("uid").(int64)

		var reserved string
		if key := c.Get(IdempotencyHeader); key != "" && keys != nil {
			reserved = fmt.Sprintf("bet:%d:%s", uid, key)
			ok, err := keys.Reserve(c.UserContext(), reserved, keyTTL)
			if err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"success": false,
					"error":   "try again later",
				})
			}
			if !ok {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"success": false,
					"error":   "duplicate request",
				})
			}
		}

		result, err := service.PlaceBet(c.UserContext(), uid, stake)
		if err != nil {
			// no bet was placed, so the same key may be retried
			if reserved != "" {
				if rerr := keys.Release(context.WithoutCancel(c.UserContext()), reserved); rerr != nil {
					service.log.Warn("release idempotency key", zap.String("key", reserved), zap.Error(rerr))
				}
			}
			return fail(c, err)
		}

		return c.JSON(fiber.Map{
			"success":     true,
			"game_id":     result.SessionID,
			"crash_point": result.CrashPoint,
			"balance":     result.Balance,
		})
	})

	r.Post("/cashout", func(c *fiber.Ctx) error {

		type Req struct {
			Multiplier float64 `json:"multiplier"`
			GameID     string  `json:"game_id"`
		}

		var body Req
		if err := c.BodyParser(&body); err != nil {
			return fail(c, ErrInvalidMultiplier)
		}

		uid := c.Locals("uid").(int64)

		result, err := service.Cashout(c.UserContext(), CashoutRequest{
			PlayerID:   uid,
			SessionID:  body.GameID,
			Multiplier: body.Multiplier,
		})
		if err != nil {
			return fail(c, err)
		}

		return c.JSON(fiber.Map{
			"success":    true,
			"winnings":   result.Winnings,
			"profit":     result.Profit,
			"balance":    result.Balance,
			"multiplier": result.Multiplier,
		})
	})

	r.Get("/leaderboard/profit", func(c *fiber.Ctx) error {
		return c.JSON(board.Top(c.QueryInt("limit", 10)))
	})
}

func RegisterAdminRoutes(r fiber.Router, service *Service, rtp *RTPController) {

	r.Get("/sessions", func(c *fiber.Ctx) error {
		return c.JSON(service.Sessions())
	})

	r.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"rtp":             rtp.Snapshot(),
			"active_sessions": len(service.Sessions()),
			"tiers":           service.Distribution().Tiers(),
		})
	})
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(fiber.Map{
		"success": false,
		"error":   PublicMessage(err),
	})
}

// StatusFor maps engine errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrCrashed):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrPlayerNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrSessionActive):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
