package session

import (
	"encoding/json"
	"errors"
)

// User is the authenticated doctor's identity as returned by the backend.
type User struct {
	ID          string `json:"_id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	UserRole    string `json:"userRole,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id".
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the registration request body.
type SignupRequest struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	UserRole    string `json:"userRole"`
	Password    string `json:"password"`
}

// Validate checks that every field is present.
func (r SignupRequest) Validate() error {
	switch {
	case r.FullName == "":
		return errors.New("fullName is required")
	case r.Email == "":
		return errors.New("email is required")
	case r.PhoneNumber == "":
		return errors.New("phoneNumber is required")
	case r.UserRole == "":
		return errors.New("userRole is required")
	case r.Password == "":
		return errors.New("password is required")
	}
	return nil
}

// AuthResult is the token and identity issued by login or registration.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UnmarshalJSON accepts {token,user} as well as the login endpoint's
// {result:{token,user}} shape.
func (r *AuthResult) UnmarshalJSON(data []byte) error {
	var aux struct {
		Token  string `json:"token"`
		User   *User  `json:"user"`
		Result *struct {
			Token string `json:"token"`
			User  *User  `json:"user"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Token, r.User = aux.Token, aux.User
	if r.Token == "" && aux.Result != nil {
		r.Token, r.User = aux.Result.Token, aux.Result.User
	}
	return nil
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Token     string `json:"-"`
	User      *User  `json:"user,omitempty"`
	IsLoading bool   `json:"isLoading"`
}

// Authenticated reports whether the snapshot holds a session.
func (s Snapshot) Authenticated() bool {
	return s.Token != "" && s.User != nil
}
