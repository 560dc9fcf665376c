package preference

import (
	"context"

	"github.com/pot-code/samba-client/internal/infrastructure/driver"
)

// KVStore Store implementation backed by a key-value server (redis)
type KVStore struct {
	KV        driver.KeyValueDB
	Namespace string
}

var _ Store = &KVStore{}

// NewKVStore .
func NewKVStore(KV driver.KeyValueDB, Namespace string) *KVStore {
	return &KVStore{KV: KV, Namespace: Namespace}
}

func (ks *KVStore) setKey(set string) string {
	return ks.Namespace + ":set:" + set
}

func (ks *KVStore) scalarKey(name string) string {
	return ks.Namespace + ":scalar:" + name
}

func (ks *KVStore) AddToSet(ctx context.Context, set, member string) error {
	if err := checkKeys(set, member); err != nil {
		return err
	}
	return ks.KV.SAdd(ctx, ks.setKey(set), member)
}

func (ks *KVStore) RemoveFromSet(ctx context.Context, set, member string) error {
	if err := checkKeys(set, member); err != nil {
		return err
	}
	return ks.KV.SRem(ctx, ks.setKey(set), member)
}

func (ks *KVStore) Contains(ctx context.Context, set, member string) (bool, error) {
	if err := checkKeys(set, member); err != nil {
		return false, err
	}
	return ks.KV.SIsMember(ctx, ks.setKey(set), member)
}

func (ks *KVStore) GetAll(ctx context.Context, set string) (Set, error) {
	if err := checkKeys(set); err != nil {
		return nil, err
	}
	members, err := ks.KV.SMembers(ctx, ks.setKey(set))
	if err != nil {
		return nil, err
	}
	return NewSet(members...), nil
}

func (ks *KVStore) SetScalar(ctx context.Context, name, value string) error {
	if err := checkKeys(name); err != nil {
		return err
	}
	return ks.KV.SetEX(ctx, ks.scalarKey(name), value, 0)
}

func (ks *KVStore) GetScalar(ctx context.Context, name string) (string, bool, error) {
	if err := checkKeys(name); err != nil {
		return "", false, err
	}
	value, err := ks.KV.Get(ctx, ks.scalarKey(name))
	if err == driver.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (ks *KVStore) DeleteScalar(ctx context.Context, name string) error {
	if err := checkKeys(name); err != nil {
		return err
	}
	return ks.KV.Del(ctx, ks.scalarKey(name))
}

func (ks *KVStore) Ping(ctx context.Context) error {
	return ks.KV.Ping(ctx)
}

func (ks *KVStore) Close(ctx context.Context) error {
	return ks.KV.Close()
}
