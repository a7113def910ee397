package auth

import (
	"fmt"
	"strings"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/malonaz/multichat/internal/apperror"
)

// TelegramUserIDPrefix prefixes the id of users created through Telegram.
const TelegramUserIDPrefix = "tg_"

// telegramUser is the identity carried by Mini-App initData.
type telegramUser struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// parseInitData verifies the initData signature with the bot token and extracts its user.
// Verification is skipped when botToken is empty.
func parseInitData(raw, botToken string) (*telegramUser, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperror.Validation("initData is required")
	}
	if botToken != "" {
		// No expiry window: auth_date is not checked.
		if err := initdata.Validate(raw, botToken, 0); err != nil {
			return nil, apperror.Auth("invalid telegram data: %v", err)
		}
	}

	data, err := initdata.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("malformed initData: %v", err)
	}
	if data.User.ID == 0 {
		return nil, apperror.Validation("initData carries no user")
	}
	return &telegramUser{
		ID:        data.User.ID,
		Username:  data.User.Username,
		FirstName: data.User.FirstName,
		LastName:  data.User.LastName,
	}, nil
}

func telegramUserID(telegramID int64) string {
	return fmt.Sprintf("%s%d", TelegramUserIDPrefix, telegramID)
}
