package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const InitDataHeader = "X-Telegram-Init-Data"

var (
	ErrNoInitData  = errors.New("init data missing")
	ErrBadInitData = errors.New("init data signature mismatch")
)

// TelegramUser is the user object embedded in WebApp init data.
type TelegramUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
}

// ValidateInitData checks the WebApp signature: the hash field must equal
// HMAC-SHA256(HMAC-SHA256("WebAppData", botToken), data-check-string).
func ValidateInitData(initData, botToken string) (*TelegramUser, error) {
	if initData == "" {
		return nil, ErrNoInitData
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	received := values.Get("hash")
	if received == "" {
		return nil, ErrBadInitData
	}

	if !hmac.Equal([]byte(received), []byte(SignInitData(values, botToken))) {
		return nil, ErrBadInitData
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, ErrBadInitData
	}
	return &user, nil
}

// SignInitData computes the hex signature for every field except hash.
func SignInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// initDataFrom prefers the header and falls back to an "initData" field in a
// JSON body, which is how the WebApp client posts it.
func initDataFrom(c *fiber.Ctx) string {
	if v := c.Get(InitDataHeader); v != "" {
		return v
	}
	body := c.Body()
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		InitData string `json:"initData"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.InitData
}

// TelegramGuard authenticates players from init data and stores their id in
// Locals("uid") and profile in Locals("user"). A non-zero devUserID is used
// when init data is absent.
func TelegramGuard(botToken string, devUserID int64, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		user, err := ValidateInitData(initDataFrom(c), botToken)
		if err != nil {
			if errors.Is(err, ErrNoInitData) && devUserID != 0 {
				user = &TelegramUser{ID: devUserID}
			} else {
				log.Debug("rejected init data", zap.Error(err), zap.String("ip", c.IP()))
				return c.Status(401).JSON(fiber.Map{"error": "unauthorized"})
			}
		}

		c.Locals("uid", user.ID)
		c.Locals("user", *user)
		return c.Next()
	}
}

func AdminGuard(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-Admin-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return c.Status(403).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Next()
	}
}
