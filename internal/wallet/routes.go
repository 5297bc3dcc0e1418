package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Ansocialov1337/my-crash-game/internal/casino"
	"github.com/Ansocialov1337/my-crash-game/internal/security"
)

func RegisterRoutes(app fiber.Router, service *Service) {

	app.Post("/init", func(c *fiber.Ctx) error {
		user, _ := c.Locals("user").(security.TelegramUser)
		uid := c.Locals("uid").(int64)

		p, err := service.EnsurePlayer(c.UserContext(), uid, user.Username, user.FirstName)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "error": "init failed"})
		}
		canClaim, hoursLeft := service.BonusStatus(p)

		return c.JSON(fiber.Map{
			"success":         true,
			"balance":         p.Balance,
			"can_claim_bonus": canClaim,
			"next_bonus_in":   hoursLeft,
			"total_bets":      p.TotalBets,
			"total_wins":      p.TotalWins,
			"total_profit":    p.TotalProfit,
			"winrate":         p.Winrate(),
		})
	})

	app.Post("/claim_bonus", func(c *fiber.Ctx) error {
		uid := c.Locals("uid").(int64)

		res, err := service.ClaimBonus(c.UserContext(), uid)
		if errors.Is(err, ErrBonusCooldown) {
			return c.Status(400).JSON(fiber.Map{
				"success":    false,
				"error":      "bonus not available yet",
				"balance":    res.Balance,
				"hours_left": res.HoursLeft,
			})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "error": "bonus failed"})
		}

		return c.JSON(fiber.Map{
			"success":      true,
			"balance":      res.Balance,
			"bonus_amount": res.Amount,
		})
	})

	app.Get("/wallet/balance", func(c *fiber.Ctx) error {
		b, err := service.GetBalance(c.UserContext(), c.Locals("uid").(int64))
		if errors.Is(err, casino.ErrPlayerNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "not found"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}
		return c.JSON(fiber.Map{"balance": b})
	})

	app.Get("/history", func(c *fiber.Ctx) error {
		rounds, err := service.RecentRounds(c.UserContext(), c.Locals("uid").(int64), clampLimit(c.QueryInt("limit", 10)))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}
		if rounds == nil {
			rounds = []casino.Round{}
		}
		return c.JSON(rounds)
	})

	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		players, err := service.TopBalances(c.UserContext(), clampLimit(c.QueryInt("limit", 10)))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}

		type entry struct {
			TelegramID int64  `json:"telegram_id"`
			Username   string `json:"username,omitempty"`
			FirstName  string `json:"first_name,omitempty"`
			Balance    int64  `json:"balance"`
			TotalWins  int64  `json:"total_wins"`
			TotalBets  int64  `json:"total_bets"`
		}
		out := make([]entry, 0, len(players))
		for _, p := range players {
			out = append(out, entry{p.TelegramID, p.Username, p.FirstName, p.Balance, p.TotalWins, p.TotalBets})
		}
		return c.JSON(out)
	})
}

func clampLimit(n int) int {
	if n <= 0 {
		return 10
	}
	if n > 100 {
		return 100
	}
	return n
}
