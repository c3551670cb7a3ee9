package models

import (
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountWarned AccountStatus = "WARNED"
	AccountBanned AccountStatus = "BANNED"
)

// ProfileColors is the palette users pick their display color from.
var ProfileColors = []string{
	"#E74C3C", "#E67E22", "#F1C40F", "#2ECC71", "#1ABC9C", "#3498DB",
	"#9B59B6", "#34495E", "#E91E63", "#795548", "#607D8B", "#00BCD4",
}

const DefaultProfileColor = "#3498DB"

type User struct {
	ID             int64         `json:"userID" db:"id"`
	Email          string        `json:"email" db:"email"`
	Username       string        `json:"username" db:"username"`
	PasswordHash   string        `json:"-" db:"password_hash"`
	ProfileColor   string        `json:"profileColor" db:"profile_color"`
	AccountStatus  AccountStatus `json:"accountStatus" db:"account_status"`
	IsAdmin        bool          `json:"isAdmin" db:"is_admin"`
	HasSeenWelcome bool          `json:"hasSeenWelcome" db:"has_seen_welcome"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
}

// Identity is the authenticated caller resolved by the session layer.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

type RegisterRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ProfileColor string `json:"profileColor"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	APIResponse
	Token string `json:"token"`
	User  User   `json:"user"`
}

var digitRe = regexp.MustCompile(`[0-9]`)

// Normalize trims the free-text fields in place.
func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.ProfileColor = strings.ToUpper(strings.TrimSpace(r.ProfileColor))
	if r.ProfileColor == "" {
		r.ProfileColor = DefaultProfileColor
	}
}

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		errors["email"] = "Email is invalid"
	}

	n := utf8.RuneCountInString(r.Username)
	switch {
	case r.Username == "":
		errors["username"] = "Username is required"
	case n < 3 || n > 50:
		errors["username"] = "Username must be between 3 and 50 characters"
	case strings.ContainsFunc(r.Username, unicode.IsSpace):
		errors["username"] = "Username must not contain spaces"
	case !digitRe.MatchString(r.Username):
		errors["username"] = "Username must contain at least one digit"
	default:
		// Usernames are public; keep the email identity out of them.
		if local, _, ok := strings.Cut(r.Email, "@"); ok && local != "" &&
			strings.Contains(strings.ToLower(r.Username), local) {
			errors["username"] = "Username must not contain your email address"
		}
	}

	if msg := passwordProblem(r.Password); msg != "" {
		errors["password"] = msg
	}

	if !slices.Contains(ProfileColors, r.ProfileColor) {
		errors["profileColor"] = "Profile color is not in the palette"
	}

	return errors
}

func passwordProblem(p string) string {
	if p == "" {
		return "Password is required"
	}
	if len(p) < 8 {
		return "Password must be at least 8 characters"
	}
	var upper, lower, digit bool
	for _, c := range p {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return "Password must contain upper case, lower case and a digit"
	}
	return ""
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}
