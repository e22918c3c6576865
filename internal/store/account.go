package store

import (
	"errors"
	"strconv"
)

// Settings keys for the account state. The store holds raw strings only;
// normalization and validation happen in the api package.
const (
	keyEmail           = "email"
	keyPassword        = "password"
	keyCSRFToken       = "csrf_token"
	keySessionToken    = "session_token"
	keyLoginEnabled    = "login_enabled"
	keySelectedProject = "selected_project"
	keyServerURL       = "server_url"
)

func (s *Store) Credentials() (email, password string, err error) {
	email, err = s.GetSetting(keyEmail)
	if err != nil && !errors.Is(err, ErrNotSet) {
		return "", "", err
	}
	password, err = s.GetSetting(keyPassword)
	if err != nil && !errors.Is(err, ErrNotSet) {
		return "", "", err
	}
	return email, password, nil
}

func (s *Store) SetCredentials(email, password string) error {
	if err := s.SetSetting(keyEmail, email); err != nil {
		return err
	}
	return s.SetSetting(keyPassword, password)
}

func (s *Store) Tokens() (csrf, session string, err error) {
	csrf, err = s.GetSetting(keyCSRFToken)
	if err != nil && !errors.Is(err, ErrNotSet) {
		return "", "", err
	}
	session, err = s.GetSetting(keySessionToken)
	if err != nil && !errors.Is(err, ErrNotSet) {
		return "", "", err
	}
	return csrf, session, nil
}

func (s *Store) SetTokens(csrf, session string) error {
	if err := s.SetSetting(keyCSRFToken, csrf); err != nil {
		return err
	}
	return s.SetSetting(keySessionToken, session)
}

func (s *Store) ClearTokens() error {
	if err := s.DeleteSetting(keyCSRFToken); err != nil {
		return err
	}
	return s.DeleteSetting(keySessionToken)
}

func (s *Store) LoginEnabled() bool {
	v, err := s.GetSetting(keyLoginEnabled)
	if err != nil {
		return false
	}
	return v == "1"
}

func (s *Store) SetLoginEnabled(enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return s.SetSetting(keyLoginEnabled, v)
}

// SelectedProject returns the persisted project id, or nil if none is selected.
func (s *Store) SelectedProject() (*int64, error) {
	v, err := s.GetSetting(keySelectedProject)
	if errors.Is(err, ErrNotSet) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, nil
	}
	return &id, nil
}

func (s *Store) SetSelectedProject(id int64) error {
	return s.SetSetting(keySelectedProject, strconv.FormatInt(id, 10))
}

func (s *Store) ClearSelectedProject() error {
	return s.DeleteSetting(keySelectedProject)
}

func (s *Store) ServerURL() (string, error) {
	return s.GetSetting(keyServerURL)
}

func (s *Store) SetServerURL(url string) error {
	return s.SetSetting(keyServerURL, url)
}
