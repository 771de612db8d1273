package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/face-attend/internal/faceencoder"
	"github.com/example/face-attend/internal/repository"
)

// fakeRegistry is an in-memory UserRegistry enforcing the same uniqueness
// rules as the real table.
type fakeRegistry struct {
	mu        sync.Mutex
	users     []repository.User
	nextID    uint
	createErr error
	deleted   []uint
}

func (f *fakeRegistry) Create(_ context.Context, user *repository.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Email == user.Email || existing.Filename == user.Filename {
			return repository.ErrDuplicateUser
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.users = append(f.users, *user)
	return nil
}

func (f *fakeRegistry) FindAll(_ context.Context) ([]repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.User, len(f.users))
	copy(out, f.users)
	return out, nil
}

func (f *fakeRegistry) FindByID(_ context.Context, id uint) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeRegistry) UpdateProfile(_ context.Context, id uint, name, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].Name = name
			f.users[i].Email = email
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (f *fakeRegistry) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	for i := range f.users {
		if f.users[i].ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRegistry) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

// fakeBlobs is an in-memory BlobStore that tracks concurrent signature reads.
type fakeBlobs struct {
	mu     sync.Mutex
	staged map[string][]byte
	images map[string][]byte
	sigs   map[string]faceencoder.Encoding

	stageErr    error
	writeSigErr error
	promoteErr  error
	readErrs    map[string]error

	readDelay   time.Duration
	inFlight    int32
	maxInFlight int32
	reads       int32
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		staged:   make(map[string][]byte),
		images:   make(map[string][]byte),
		sigs:     make(map[string]faceencoder.Encoding),
		readErrs: make(map[string]error),
	}
}

func (f *fakeBlobs) StageImage(id string, data []byte) error {
	if f.stageErr != nil {
		return f.stageErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged[id] = data
	return nil
}

func (f *fakeBlobs) PromoteImage(id string) error {
	if f.promoteErr != nil {
		return f.promoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.staged[id]
	if !ok {
		return errors.New("not staged")
	}
	delete(f.staged, id)
	f.images[id] = data
	return nil
}

func (f *fakeBlobs) DiscardStaged(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.staged, id)
	return nil
}

func (f *fakeBlobs) WriteImage(id string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[id] = data
	return nil
}

func (f *fakeBlobs) ReadImage(id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.images[id]
	if !ok {
		return nil, errors.New("image not found")
	}
	return data, nil
}

func (f *fakeBlobs) WriteSignature(id string, enc faceencoder.Encoding) error {
	if f.writeSigErr != nil {
		return f.writeSigErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sigs[id] = enc
	return nil
}

func (f *fakeBlobs) ReadSignature(id string) (faceencoder.Encoding, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	atomic.AddInt32(&f.reads, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, current) {
			break
		}
	}
	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.readErrs[id]; ok {
		return nil, err
	}
	enc, ok := f.sigs[id]
	if !ok {
		return nil, errors.New("signature blob missing")
	}
	return enc, nil
}

func (f *fakeBlobs) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.staged, id)
	delete(f.images, id)
	delete(f.sigs, id)
	return nil
}

// stubEncoder returns canned encodings or errors.
type stubEncoder struct {
	encodeFn func(ctx context.Context, imageBytes []byte, policy faceencoder.Policy) (faceencoder.Encoding, error)
}

func (s *stubEncoder) Encode(ctx context.Context, imageBytes []byte, policy faceencoder.Policy) (faceencoder.Encoding, error) {
	return s.encodeFn(ctx, imageBytes, policy)
}

// encoderReturning always yields the given encoding.
func encoderReturning(enc faceencoder.Encoding) *stubEncoder {
	return &stubEncoder{encodeFn: func(context.Context, []byte, faceencoder.Policy) (faceencoder.Encoding, error) {
		return enc, nil
	}}
}

// encoderFailing always yields the given error.
func encoderFailing(err error) *stubEncoder {
	return &stubEncoder{encodeFn: func(context.Context, []byte, faceencoder.Policy) (faceencoder.Encoding, error) {
		return nil, err
	}}
}

// stubCache is an in-memory Cache with injectable per-call errors.
type stubCache struct {
	mu      sync.Mutex
	values  map[string]string
	setErrs []error
	getErrs []error
	setKeys []string
}

func newStubCache() *stubCache {
	return &stubCache{values: make(map[string]string)}
}

func (s *stubCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setKeys = append(s.setKeys, key)
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		if err != nil {
			return err
		}
	}
	if str, ok := value.(string); ok {
		s.values[key] = str
	}
	return nil
}

func (s *stubCache) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		if err != nil {
			return "", err
		}
	}
	value, ok := s.values[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return value, nil
}
