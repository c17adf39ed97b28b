package store

import (
	"kwik.app/dispatch/core/db"
)

// Stores hands out stores bound to one connection or transaction.
type Stores struct {
	conn db.DBTX
}

func NewStores(conn db.DBTX) *Stores {
	return &Stores{conn: conn}
}

func (s *Stores) Calls() CallStore {
	return newPostgresCallStore(s.conn)
}
