package users

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/matryer/is"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/foundation/database"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	is := is.New(t)

	hash, err := hashPassword("correct horse battery staple")
	is.NoErr(err)
	is.True(hash != "correct horse battery staple") // never stored as plaintext

	is.NoErr(bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery staple")))
	is.True(bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong password")) != nil)
}

func TestHashPassword_SaltsEachHash(t *testing.T) {
	is := is.New(t)

	first, err := hashPassword("same password")
	is.NoErr(err)
	second, err := hashPassword("same password")
	is.NoErr(err)
	is.True(first != second) // per-hash salt
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	url := os.Getenv("METROLIVE_TEST_DB_URL")
	if url == "" {
		t.Skip("set METROLIVE_TEST_DB_URL to run database tests")
	}
	db, err := sqlx.Connect("pgx", url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	sc, err := schema.Ensure(db)
	if err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return sc
}

func TestStore_CreateAndAuthenticate(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	email := fmt.Sprintf("rider-%d@example.com", time.Now().UnixNano())

	created, err := store.Create("Test Rider", email, "transit4life")
	is.NoErr(err)
	is.True(created.Id != 0)
	is.True(created.PasswordHash != "transit4life") // only the hash is stored

	user, err := store.Authenticate(email, "transit4life")
	is.NoErr(err)
	is.Equal(user.Email, email)
	is.Equal(user.Id, created.Id)
}

func TestStore_AuthenticateRejections(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	email := fmt.Sprintf("rider-%d@example.com", time.Now().UnixNano())
	_, err := store.Create("Test Rider", email, "transit4life")
	is.NoErr(err)

	// wrong password and unknown email must be indistinguishable
	_, err = store.Authenticate(email, "not the password")
	is.True(errors.Is(err, ErrInvalidCredentials))

	_, err = store.Authenticate(fmt.Sprintf("nobody-%d@example.com", time.Now().UnixNano()), "transit4life")
	is.True(errors.Is(err, ErrInvalidCredentials))
}

func TestStore_CreateDuplicateEmail(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	email := fmt.Sprintf("rider-%d@example.com", time.Now().UnixNano())
	_, err := store.Create("First Rider", email, "transit4life")
	is.NoErr(err)

	_, err = store.Create("Second Rider", email, "other password")
	is.True(err != nil)
	is.True(database.IsConstraintViolation(err)) // unique email
}
