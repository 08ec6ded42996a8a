package model

import (
	"fmt"
	"sync"
)

// AdminEmail is the key of the sentinel account heading every directory.
// It is never persisted and can neither sign in nor be signed up.
const AdminEmail = "admin"

// Account is one registered user.
//
// Fields:
//  Email    – unique key.
//  Nickname – display name returned on sign-in.
//  Password – stored credential; verbatim unless bcrypt hashing is enabled.
//  deletion – serializes mutation of the reservation list; see DeletionLock.
//  mu       – guards the reservations slice for individual reads and writes.
type Account struct {
	Email    string
	Nickname string
	Password string

	deletion     sync.Mutex
	mu           sync.Mutex
	reservations []string
}

// NewAccount builds an account with the given reservation codes.
func NewAccount(email, nickname, password string, codes ...string) *Account {
	return &Account{
		Email:        email,
		Nickname:     nickname,
		Password:     password,
		reservations: append([]string(nil), codes...),
	}
}

// DeletionLock exposes the per-account critical section.
func (a *Account) DeletionLock() sync.Locker { return &a.deletion }

// IsAdmin reports whether a is the directory sentinel.
func (a *Account) IsAdmin() bool { return a.Email == AdminEmail }

// Reservations returns a copy of the codes in reservation order.
func (a *Account) Reservations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.reservations...)
}

// AddReservation appends code.
func (a *Account) AddReservation(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reservations = append(a.reservations, code)
}

// HasReservation reports whether code belongs to a.
func (a *Account) HasReservation(code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.reservations {
		if c == code {
			return true
		}
	}
	return false
}

// RemoveReservation drops the first occurrence of code and reports whether
// it was present.
func (a *Account) RemoveReservation(code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, c := range a.reservations {
		if c == code {
			a.reservations = append(a.reservations[:i], a.reservations[i+1:]...)
			return true
		}
	}
	return false
}

// Directory is the account collection keyed by email, kept in insertion
// order for persistence.  The admin sentinel is always first.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]*Account
	order   []*Account
}

// NewDirectory returns a directory holding only the admin sentinel.
func NewDirectory() *Directory {
	admin := NewAccount(AdminEmail, AdminEmail, AdminEmail)
	return &Directory{
		byEmail: map[string]*Account{AdminEmail: admin},
		order:   []*Account{admin},
	}
}

// Exists reports whether email is taken, including by the sentinel.
func (d *Directory) Exists(email string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byEmail[email]
	return ok
}

// Lookup returns the real account registered under email.  The sentinel is
// never returned.
func (d *Directory) Lookup(email string) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byEmail[email]
	if !ok || a.IsAdmin() {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	}
	return a, nil
}

// Insert adds a new account.  The caller serializes the Exists/Insert pair
// with the signup lock; Insert still refuses a duplicate on its own.
func (d *Directory) Insert(a *Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byEmail[a.Email]; ok {
		return fmt.Errorf("%w: %s", ErrEmailExists, a.Email)
	}
	d.byEmail[a.Email] = a
	d.order = append(d.order, a)
	return nil
}

// Accounts returns the real accounts in insertion order.
func (d *Directory) Accounts() []*Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Account, 0, len(d.order)-1)
	for _, a := range d.order {
		if !a.IsAdmin() {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of real accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order) - 1
}
