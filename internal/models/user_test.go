package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterRequestValidate(t *testing.T) {
	valid := func() RegisterRequest {
		return RegisterRequest{Email: "sam@example.com", Username: "quiet42", Password: "Secret123", ProfileColor: "#2ecc71"}
	}

	t.Run("should accept a well formed request", func(t *testing.T) {
		r := valid()
		r.Normalize()
		require.Empty(t, r.Validate())
	})

	cases := map[string]struct {
		mutate func(*RegisterRequest)
		field  string
	}{
		"should reject a bad email":               {func(r *RegisterRequest) { r.Email = "nope" }, "email"},
		"should reject a short username":          {func(r *RegisterRequest) { r.Username = "a1" }, "username"},
		"should reject a username without digits": {func(r *RegisterRequest) { r.Username = "quietone" }, "username"},
		"should reject spaces in the username":    {func(r *RegisterRequest) { r.Username = "quiet 42" }, "username"},
		"should reject the email in the username": {func(r *RegisterRequest) { r.Username = "sam2024" }, "username"},
		"should reject a weak password":           {func(r *RegisterRequest) { r.Password = "password1" }, "password"},
		"should reject colors outside palette":    {func(r *RegisterRequest) { r.ProfileColor = "#000000" }, "profileColor"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid()
			tc.mutate(&r)
			r.Normalize()
			require.Contains(t, r.Validate(), tc.field)
		})
	}
}

func TestPenaltyTypeAccountStatus(t *testing.T) {
	req := require.New(t)
	req.Equal(AccountBanned, PenaltyPermaBan.AccountStatus())
	req.Equal(AccountWarned, PenaltyTempBan.AccountStatus())
	req.Equal(AccountWarned, PenaltyWarning.AccountStatus())
}
