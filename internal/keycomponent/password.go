// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keycomponent

import (
	"context"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/keys"
	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

// Password edits the master password factor.
type Password struct {
	base
	password *crypto.Secret
	repeat   *crypto.Secret
}

var _ PasswordComponent = (*Password)(nil)

// NewPassword creates a password component in PageAddNew.
func NewPassword() *Password {
	return &Password{
		base:     newBase("Password", keys.KindPassword),
		password: crypto.NewSecret(nil),
		repeat:   crypto.NewSecret(nil),
	}
}

// SetPassword stores the entered password and its confirmation.
// The inputs are copied; callers may zero them afterwards.
func (p *Password) SetPassword(password, repeat []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.password.Destroy()
	p.repeat.Destroy()
	p.password = crypto.NewSecret(password)
	p.repeat = crypto.NewSecret(repeat)
}

// IsEmpty is true outside PageEdit or when no password was entered.
func (p *Password) IsEmpty() bool {
	return p.VisiblePage() != PageEdit || p.secret().IsEmpty()
}

func (p *Password) Validate(ctx context.Context) error {
	p.mu.Lock()
	password, repeat := p.password, p.repeat
	p.mu.Unlock()

	var match bool
	if err := repeat.WithBytes(func(r []byte) error {
		match = password.Equal(r)
		return nil
	}); err != nil {
		return p.invalid("Could not read the repeated password.", err)
	}
	if !match {
		return p.invalid("Passwords do not match.", nil)
	}
	return nil
}

func (p *Password) AddToCompositeKey(ctx context.Context, b *keys.Builder) error {
	return p.secret().WithBytes(func(pw []byte) error {
		b.AddKey(keys.NewPasswordKey(pw))
		return nil
	})
}

// Quality scores the entered password.
func (p *Password) Quality() passwordhealth.Quality {
	var q passwordhealth.Quality
	_ = p.secret().WithBytes(func(pw []byte) error {
		q = passwordhealth.Evaluate(string(pw)).Quality()
		return nil
	})
	return q
}

// SetComponentAdded also clears any entered password.
func (p *Password) SetComponentAdded(added bool) {
	p.base.SetComponentAdded(added)
	p.SetPassword(nil, nil)
}

// Remove also clears any entered password.
func (p *Password) Remove() {
	p.SetPassword(nil, nil)
	p.base.Remove()
}

func (p *Password) secret() *crypto.Secret {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.password
}
