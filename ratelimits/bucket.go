package ratelimits

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// How many keys a bucket may contain when created
	BUCKET_INITIAL_FILL = 16

	// The maximum amount of keys a user may possess
	BUCKET_UPPER_BOUND = 32

	// How often new keys drip into the buckets
	DROP_INTERVAL = 10 * time.Second

	// How many keys may drop at a time
	DROP_SIZE = 1
)

// ErrNoKeys is returned by Drain if the bucket of a user is empty
var ErrNoKeys = errors.New("no keys left")

// Global pointer to a container instance
var Container = &BucketContainer{}

// BucketContainer maps discord ids to command keys
type BucketContainer struct {
	sync.Mutex

	buckets map[string]int8
	once    sync.Once
}

// Init allocates the map and starts the refiller, later calls are no-ops
func (b *BucketContainer) Init() {
	b.once.Do(func() {
		b.Lock()
		if b.buckets == nil {
			b.buckets = make(map[string]int8)
		}
		b.Unlock()

		go b.Refiller()
	})
}

// Refiller refills user buckets every DROP_INTERVAL
func (b *BucketContainer) Refiller() {
	ticker := time.NewTicker(DROP_INTERVAL)
	defer ticker.Stop()

	for range ticker.C {
		b.refill()
	}
}

func (b *BucketContainer) refill() {
	b.Lock()
	defer b.Unlock()

	for user, keys := range b.buckets {
		switch {
		case keys < 0:
			// chill zone
			b.buckets[user]++
		case keys == 0:
			b.buckets[user] = BUCKET_INITIAL_FILL
		case keys < BUCKET_UPPER_BOUND:
			b.buckets[user] += DROP_SIZE
		}
	}
}

// bucket returns the keys of user, creating a full bucket on first use. Needs the lock.
func (b *BucketContainer) bucket(user string) int8 {
	if b.buckets == nil {
		b.buckets = make(map[string]int8)
	}
	keys, ok := b.buckets[user]
	if !ok {
		keys = BUCKET_INITIAL_FILL
		b.buckets[user] = keys
	}
	return keys
}

// Drain removes amount keys from the bucket of user if enough are left
func (b *BucketContainer) Drain(amount int8, user string) error {
	b.Lock()
	defer b.Unlock()

	if amount > b.bucket(user) {
		return ErrNoKeys
	}
	b.buckets[user] -= amount
	return nil
}

// HasKeys checks if the user still has keys
func (b *BucketContainer) HasKeys(user string) bool {
	b.Lock()
	defer b.Unlock()

	return b.bucket(user) > 0
}

func (b *BucketContainer) Get(user string) int8 {
	b.Lock()
	defer b.Unlock()

	return b.buckets[user]
}

// Set overwrites the keys of user, -1 puts the user into the chill zone
func (b *BucketContainer) Set(user string, value int8) {
	b.Lock()
	defer b.Unlock()

	b.bucket(user)
	b.buckets[user] = value
}
