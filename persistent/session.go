package persistent

import (
	"context"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/centbook/centbook"
	"github.com/google/uuid"
	"github.com/tidwall/buntdb"
)

const sessionTTL = 30 * 24 * time.Hour // 30 days

type Session struct {
	Id        string    `json:"id"`
	UserId    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s Session) ToDomain() centbook.Session {
	return centbook.Session{
		Id:        s.Id,
		UserId:    centbook.UserId(s.UserId),
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
	}
}

type SessionStore struct {
	Buntdb *buntdb.DB
}

var _ centbook.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) RegisterNew(ctx context.Context, userId centbook.UserId) (centbook.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return centbook.Session{}, fmt.Errorf("generate token: %w", err)
	}

	session := Session{
		Id:        uuid.New().String(),
		UserId:    string(userId),
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(sessionTTL),
	}
	serializedSession, err := json.Marshal(&session)
	if err != nil {
		return centbook.Session{}, fmt.Errorf("session serialize: %w", err)
	}

	err = s.Buntdb.Update(func(tx *buntdb.Tx) error {
		expireOptions := &buntdb.SetOptions{Expires: true, TTL: sessionTTL}
		_, _, err := tx.Set("session:"+token, string(serializedSession), expireOptions)
		if err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		return nil
	})
	if err != nil {
		return centbook.Session{}, fmt.Errorf("bunt update: %w", err)
	}
	return session.ToDomain(), nil
}

func (s *SessionStore) ByToken(token string) (centbook.Session, error) {
	var session Session
	err := s.Buntdb.View(func(tx *buntdb.Tx) error {
		serializedSession, err := tx.Get("session:" + token)
		if err != nil {
			return fmt.Errorf("get serialized session: %w", err)
		}
		if err := json.Unmarshal([]byte(serializedSession), &session); err != nil {
			return fmt.Errorf("deserialize session: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return centbook.Session{}, centbook.ErrSessionNotFound
		} else {
			return centbook.Session{}, fmt.Errorf("buntdb view: %w", err)
		}
	}
	return session.ToDomain(), nil
}

func (s *SessionStore) InvalidateByToken(token string) error {
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("session:" + token)
		return err
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return centbook.ErrSessionNotFound
		}
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

func generateSessionToken() (string, error) {
	const tokenBytes = 60
	rawToken := make([]byte, tokenBytes)
	// crypto/rand - getentropy(2)
	bytesRead, err := crand.Read(rawToken)
	if err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	if bytesRead != tokenBytes {
		return "", fmt.Errorf("bytes read %d / required %d", bytesRead, tokenBytes)
	}
	dirtyToken := base64.StdEncoding.EncodeToString(rawToken)

	// replace all ":" with "_" so a token can never smuggle a key separator
	// into our buntdb queries.
	token := strings.Replace(dirtyToken, ":", "_", -1)
	return token, nil
}
