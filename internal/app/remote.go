package app

import (
	"context"
	"sync"

	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/store"
)

type remoteConn interface {
	store.Remote
	Close() error
}

// lazyRemote connects on first use and keeps retrying on later calls, so a
// terminal can start while the central database is unreachable.
type lazyRemote struct {
	connect func(ctx context.Context) (remoteConn, error)

	mu   sync.Mutex
	conn remoteConn
}

func newLazyRemote(connect func(ctx context.Context) (remoteConn, error)) *lazyRemote {
	return &lazyRemote{connect: connect}
}

func (l *lazyRemote) get(ctx context.Context) (remoteConn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn, nil
	}
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}
	l.conn = conn
	return conn, nil
}

func (l *lazyRemote) Insert(ctx context.Context, record domain.SaleRecord) error {
	conn, err := l.get(ctx)
	if err != nil {
		return err
	}
	return conn.Insert(ctx, record)
}

func (l *lazyRemote) SelectAll(ctx context.Context) ([]domain.SaleRecord, error) {
	conn, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return conn.SelectAll(ctx)
}

func (l *lazyRemote) DeleteAll(ctx context.Context) error {
	conn, err := l.get(ctx)
	if err != nil {
		return err
	}
	return conn.DeleteAll(ctx)
}

func (l *lazyRemote) Ping(ctx context.Context) error {
	conn, err := l.get(ctx)
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

func (l *lazyRemote) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}
