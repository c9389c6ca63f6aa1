package models

// All lists every table the application migrates, parents first.
func All() []any {
	return []any{
		&Role{},
		&User{},
		&RefreshToken{},
		&AmilFeeRate{},
		&Muzakki{},
		&Mustahiq{},
		&Penerimaan{},
		&Distribusi{},
		&AuditLog{},
		&CodeSequence{},
		&Receipt{},
	}
}
