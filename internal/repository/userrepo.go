package repository

import (
	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// Credentials is the credential store: a view over the users of a loaded document.
type Credentials struct{ doc *model.Document }

// All returns a copy of every user.
func (c *Credentials) All() []model.User {
	out := make([]model.User, len(c.doc.Users))
	copy(out, c.doc.Users)
	return out
}

// ByID loads a user by ID.
func (c *Credentials) ByID(id int64) (model.User, error) {
	if i := c.index(id); i >= 0 {
		return c.doc.Users[i], nil
	}
	return model.User{}, errs.ErrNotFound
}

// ByUsername loads a user by exact username.
func (c *Credentials) ByUsername(username string) (model.User, error) {
	for _, u := range c.doc.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, errs.ErrNotFound
}

// Admin returns the admin-role user if one exists.
func (c *Credentials) Admin() (model.User, bool) {
	for _, u := range c.doc.Users {
		if u.IsAdmin() {
			return u, true
		}
	}
	return model.User{}, false
}

// NextID returns max existing id + 1, or 1 when there are no users.
func (c *Credentials) NextID() int64 {
	var max int64
	for _, u := range c.doc.Users {
		if u.ID > max {
			max = u.ID
		}
	}
	return max + 1
}

// Insert appends a user; id and username must be unique.
func (c *Credentials) Insert(u model.User) error {
	if u.ID <= 0 || u.Username == "" {
		return errs.ErrValidation
	}
	for _, cur := range c.doc.Users {
		if cur.ID == u.ID || cur.Username == u.Username {
			return errs.ErrAlreadyExists
		}
	}
	c.doc.Users = append(c.doc.Users, u)
	return nil
}

// Replace overwrites the user with u.ID, keeping usernames unique.
func (c *Credentials) Replace(u model.User) error {
	i := c.index(u.ID)
	if i < 0 {
		return errs.ErrNotFound
	}
	for _, cur := range c.doc.Users {
		if cur.ID != u.ID && cur.Username == u.Username {
			return errs.ErrAlreadyExists
		}
	}
	c.doc.Users[i] = u
	return nil
}

// Delete removes the user with id.
func (c *Credentials) Delete(id int64) error {
	i := c.index(id)
	if i < 0 {
		return errs.ErrNotFound
	}
	c.doc.Users = append(c.doc.Users[:i], c.doc.Users[i+1:]...)
	return nil
}

func (c *Credentials) index(id int64) int {
	for i, u := range c.doc.Users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
