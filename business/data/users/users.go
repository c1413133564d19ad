// Package users provides account records. Credentials are stored only as
// salted one-way hashes.
package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/foundation/database"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown email or a
// wrong password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid email or password")

// User is one account record. PasswordHash holds the bcrypt hash, never the
// plaintext password.
type User struct {
	Id           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Store serves the users table.
type Store struct {
	db *sqlx.DB
}

// NewStore builds a Store over an ensured schema.
func NewStore(sc *schema.Schema) *Store {
	return &Store{db: sc.DB()}
}

// Create registers an account. A duplicate email surfaces as a
// ConstraintViolation.
func (s *Store) Create(name string, email string, password string) (*User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	statementString := s.db.Rebind("insert into users (name, email, password, created_at) " +
		"values (?, ?, ?, ?) returning id")
	err = s.db.Get(&user.Id, statementString, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return nil, database.WrapError(err)
	}
	return &user, nil
}

// Authenticate looks an account up by email and verifies the password against
// the stored hash.
func (s *Store) Authenticate(email string, password string) (*User, error) {
	statementString := s.db.Rebind("select * from users where email = ?")
	user := User{}
	err := s.db.Get(&user, statementString, email)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, database.WrapError(err)
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
