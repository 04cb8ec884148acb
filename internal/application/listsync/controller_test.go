package listsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/customerdir/internal/domain/customer"
	"github.com/erp/customerdir/internal/infrastructure/notify"
	"github.com/erp/customerdir/internal/infrastructure/remote"
)

// MockStore implements Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListCustomers(ctx context.Context) ([]customer.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customer.Record), args.Error(1)
}

func (m *MockStore) CreateCustomer(ctx context.Context, candidate customer.Candidate) error {
	args := m.Called(ctx, candidate)
	return args.Error(0)
}

func (m *MockStore) UpdateCustomer(ctx context.Context, id customer.ID, candidate customer.Candidate) error {
	args := m.Called(ctx, id, candidate)
	return args.Error(0)
}

func (m *MockStore) DeleteCustomer(ctx context.Context, id customer.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// recorder is a notify.Emitter that keeps every notification
type recorder struct {
	mu            sync.Mutex
	notifications []notify.Notification
	onNotify      func(notify.Notification)
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	hook := r.onNotify
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notifications...)
}

func sampleRecords() []customer.Record {
	return []customer.Record{
		{ID: 1, Name: "Ann", Email: "a@x.com", Age: 30, Gender: customer.GenderMale},
		{ID: 2, Name: "Bob", Email: "b@x.com", Age: 41, Gender: customer.GenderMale},
		{ID: 3, Name: "Cat", Email: "c@x.com", Age: 25, Gender: customer.GenderFemale},
	}
}

func newTestController(t *testing.T) (*Controller, *MockStore, *recorder, *Metrics) {
	t.Helper()
	store := new(MockStore)
	rec := &recorder{}
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewController(store, rec, WithMetrics(metrics)), store, rec, metrics
}

func TestNewController_StartsIdle(t *testing.T) {
	c, _, rec, _ := newTestController(t)
	assert.Equal(t, Idle{}, c.State())
	assert.Equal(t, KindIdle, c.State().Kind())
	assert.Empty(t, rec.all())
}

func TestRefresh_Loaded(t *testing.T) {
	c, store, rec, metrics := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil).Once()

	got := c.Refresh(t.Context())

	require.Equal(t, Loaded{Records: sampleRecords()}, got)
	assert.Equal(t, got, c.State())
	assert.Empty(t, rec.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues(string(KindLoaded))))
	store.AssertExpectations(t)
}

func TestRefresh_Empty(t *testing.T) {
	c, store, rec, metrics := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return([]customer.Record{}, nil).Once()

	got := c.Refresh(t.Context())

	assert.Equal(t, Empty{}, got)
	assert.Equal(t, KindEmpty, c.State().Kind())
	assert.Empty(t, rec.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues(string(KindEmpty))))
}

func TestRefresh_NilListIsEmpty(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(nil, nil).Once()

	assert.Equal(t, Empty{}, c.Refresh(t.Context()))
}

func TestRefresh_Failure(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "server message",
			err:         &remote.Failure{Kind: remote.KindServer, Code: "ECONNABORTED", Message: "Service unavailable"},
			wantCode:    "ECONNABORTED",
			wantMessage: "Service unavailable",
		},
		{
			name:        "no message falls back",
			err:         &remote.Failure{Kind: remote.KindServer, Code: remote.CodeBadResponse, Status: 502},
			wantCode:    remote.CodeBadResponse,
			wantMessage: DefaultErrorMessage,
		},
		{
			name:        "unclassified error",
			err:         errors.New("boom"),
			wantCode:    CodeUnknown,
			wantMessage: DefaultErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, rec, metrics := newTestController(t)
			store.On("ListCustomers", mock.Anything).Return(nil, tt.err).Once()

			got := c.Refresh(t.Context())

			assert.Equal(t, Error{Message: tt.wantMessage}, got)
			assert.Equal(t, []notify.Notification{notify.Error(tt.wantCode, tt.wantMessage)}, rec.all())
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues(string(KindError))))
		})
	}
}

func TestRefresh_ErrorIsLeftOnlyByRefresh(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(nil, errors.New("down")).Once()
	store.On("ListCustomers", mock.Anything).Return(sampleRecords()[:1], nil).Once()

	assert.Equal(t, KindError, c.Refresh(t.Context()).Kind())
	assert.Equal(t, KindError, c.State().Kind())

	assert.Equal(t, Loaded{Records: sampleRecords()[:1]}, c.Refresh(t.Context()))
}

func TestRefresh_Idempotent(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil).Twice()

	first := c.Refresh(t.Context())
	second := c.Refresh(t.Context())

	assert.Equal(t, first, second)
	store.AssertNumberOfCalls(t, "ListCustomers", 2)
}

func TestRefresh_RecordsAreCopied(t *testing.T) {
	c, store, _, _ := newTestController(t)
	records := sampleRecords()
	store.On("ListCustomers", mock.Anything).Return(records, nil).Once()

	c.Refresh(t.Context())
	records[0].Name = "Changed"

	loaded, ok := c.State().(Loaded)
	require.True(t, ok)
	assert.Equal(t, "Ann", loaded.Records[0].Name)
}

func TestRefresh_CancelledContext(t *testing.T) {
	c, store, rec, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(nil, context.Canceled).Once()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	assert.Equal(t, Error{Message: DefaultErrorMessage}, c.Refresh(ctx))
	assert.Equal(t, []notify.Notification{notify.Error(CodeAborted, DefaultErrorMessage)}, rec.all())
}

func TestRefresh_StaleCompletionIsDiscarded(t *testing.T) {
	tests := []struct {
		name     string
		staleErr error
	}{
		{name: "stale success"},
		{name: "stale failure", staleErr: &remote.Failure{Code: remote.CodeConnReset, Message: "reset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, rec, metrics := newTestController(t)

			entered := make(chan struct{})
			release := make(chan struct{})
			var staleRecords []customer.Record
			if tt.staleErr == nil {
				staleRecords = sampleRecords()
			}
			store.On("ListCustomers", mock.Anything).Run(func(mock.Arguments) {
				close(entered)
				<-release
			}).Return(staleRecords, tt.staleErr).Once()
			store.On("ListCustomers", mock.Anything).Return(sampleRecords()[1:], nil).Once()

			first := c.RefreshAsync(t.Context())
			<-entered

			latest := c.Refresh(t.Context())
			require.Equal(t, Loaded{Records: sampleRecords()[1:]}, latest)

			close(release)
			assert.Equal(t, latest, <-first)
			_, open := <-first
			assert.False(t, open)

			assert.Equal(t, latest, c.State())
			assert.Empty(t, rec.all())
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StaleCompletions))
			assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues(string(KindError))))
		})
	}
}

func TestRefreshAsync(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return([]customer.Record{}, nil).Once()

	assert.Equal(t, Empty{}, <-c.RefreshAsync(t.Context()))
}

func TestMutations_Success(t *testing.T) {
	ann := customer.Candidate{Name: "Ann", Email: "a@x.com", Age: 30, Gender: customer.GenderMale}

	tests := []struct {
		name      string
		operation string
		setup     func(store *MockStore)
		run       func(ctx context.Context, c *Controller) error
		expect    notify.Notification
	}{
		{
			name:      "create",
			operation: "create",
			setup: func(store *MockStore) {
				store.On("CreateCustomer", mock.Anything, ann).Return(nil).Once()
			},
			run: func(ctx context.Context, c *Controller) error {
				return c.Create(ctx, ann)
			},
			expect: notify.Success("Customer saved", "Customer Ann was successfully saved"),
		},
		{
			name:      "update",
			operation: "update",
			setup: func(store *MockStore) {
				store.On("UpdateCustomer", mock.Anything, customer.ID(1), ann).Return(nil).Once()
			},
			run: func(ctx context.Context, c *Controller) error {
				return c.Update(ctx, 1, ann)
			},
			expect: notify.Success("Customer updated", "Customer Ann was successfully updated"),
		},
		{
			name:      "update without name",
			operation: "update",
			setup: func(store *MockStore) {
				store.On("UpdateCustomer", mock.Anything, customer.ID(7), customer.Candidate{Age: 31}).Return(nil).Once()
			},
			run: func(ctx context.Context, c *Controller) error {
				return c.Update(ctx, 7, customer.Candidate{Age: 31})
			},
			expect: notify.Success("Customer updated", "Customer #7 was successfully updated"),
		},
		{
			name:      "delete",
			operation: "delete",
			setup: func(store *MockStore) {
				store.On("DeleteCustomer", mock.Anything, customer.ID(5)).Return(nil).Once()
			},
			run: func(ctx context.Context, c *Controller) error {
				return c.Remove(ctx, 5, "Ann")
			},
			expect: notify.Success("Customer deleted", "Customer Ann was successfully deleted"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, rec, metrics := newTestController(t)
			tt.setup(store)

			var order []string
			rec.onNotify = func(n notify.Notification) { order = append(order, "notify") }
			store.On("ListCustomers", mock.Anything).Run(func(mock.Arguments) {
				order = append(order, "refresh")
			}).Return(sampleRecords(), nil).Once()

			require.NoError(t, tt.run(t.Context(), c))

			assert.Equal(t, []notify.Notification{tt.expect}, rec.all())
			assert.Equal(t, []string{"notify", "refresh"}, order)
			assert.Equal(t, Loaded{Records: sampleRecords()}, c.State())
			store.AssertNumberOfCalls(t, "ListCustomers", 1)
			store.AssertExpectations(t)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Mutations.WithLabelValues(tt.operation, "success")))
		})
	}
}

func TestMutations_Failure(t *testing.T) {
	invalid := customer.Candidate{Name: "", Email: "bad", Age: -1, Gender: customer.GenderMale}
	failure := &remote.Failure{Kind: remote.KindServer, Code: remote.CodeBadRequest, Message: "Age must be positive", Status: 400}

	tests := []struct {
		name      string
		operation string
		setup     func(store *MockStore)
		run       func(ctx context.Context, c *Controller) error
	}{
		{
			name:      "create",
			operation: "create",
			setup: func(store *MockStore) {
				store.On("CreateCustomer", mock.Anything, invalid).Return(failure).Once()
			},
			run: func(ctx context.Context, c *Controller) error {
				return c.Create(ctx, invalid)
			},
		},
		{
			name:      "update",
			operation: "update",
			setup: func(store *MockStore) {
				store.On("UpdateCustomer", mock.Anything, customer.ID(2), invalid).Return(failure).Once()
			},
			run: func(ctx context.Context, c *Controller) error {
				return c.Update(ctx, 2, invalid)
			},
		},
		{
			name:      "delete",
			operation: "delete",
			setup: func(store *MockStore) {
				store.On("DeleteCustomer", mock.Anything, customer.ID(2)).Return(failure).Once()
			},
			run: func(ctx context.Context, c *Controller) error {
				return c.Remove(ctx, 2, "Bob")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, rec, metrics := newTestController(t)
			store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil).Once()
			before := c.Refresh(t.Context())
			tt.setup(store)

			err := tt.run(t.Context(), c)

			require.Error(t, err)
			var f *remote.Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, failure, f)

			assert.Equal(t, before, c.State())
			assert.Equal(t, []notify.Notification{notify.Error(remote.CodeBadRequest, "Age must be positive")}, rec.all())
			store.AssertNumberOfCalls(t, "ListCustomers", 1)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Mutations.WithLabelValues(tt.operation, "failure")))
		})
	}
}

func TestMutations_NoDedup(t *testing.T) {
	c, store, rec, _ := newTestController(t)
	candidate := customer.Candidate{Name: "Ann", Email: "a@x.com", Age: 30, Gender: customer.GenderMale}
	store.On("CreateCustomer", mock.Anything, candidate).Return(nil).Twice()
	store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil).Twice()

	require.NoError(t, c.Create(t.Context(), candidate))
	require.NoError(t, c.Create(t.Context(), candidate))

	store.AssertNumberOfCalls(t, "CreateCustomer", 2)
	assert.Len(t, rec.all(), 2)
}

func TestSubscribe(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(nil, errors.New("down")).Once()
	store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil).Once()

	var seen []StateKind
	unsubscribe := c.Subscribe(func(s State) {
		seen = append(seen, s.Kind())
		// the lock is not held while subscribers run
		_ = c.State()
	})

	c.Refresh(t.Context())
	c.Refresh(t.Context())
	assert.Equal(t, []StateKind{KindLoading, KindError, KindLoading, KindLoaded}, seen)

	unsubscribe()
	unsubscribe()
	store.On("ListCustomers", mock.Anything).Return([]customer.Record{}, nil).Once()
	c.Refresh(t.Context())
	assert.Len(t, seen, 4)
}

func TestSubscribe_RefreshFromSubscriber(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(nil, errors.New("down")).Once()
	store.On("ListCustomers", mock.Anything).Return([]customer.Record{}, nil).Once()

	var seen []StateKind
	retried := false
	c.Subscribe(func(s State) {
		seen = append(seen, s.Kind())
		if s.Kind() == KindError && !retried {
			retried = true
			c.Refresh(context.Background())
		}
	})

	c.Refresh(t.Context())

	assert.Equal(t, []StateKind{KindLoading, KindError, KindLoading, KindEmpty}, seen)
	assert.Equal(t, Empty{}, c.State())
}

func TestSubscribe_PanickingSubscriber(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return([]customer.Record{}, nil).Once()

	var seen int
	c.Subscribe(func(State) { panic("boom") })
	c.Subscribe(func(State) { seen++ })

	assert.NotPanics(t, func() { c.Refresh(t.Context()) })
	assert.Equal(t, 2, seen)
}

func TestClose(t *testing.T) {
	c, store, rec, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil).Once()
	c.Refresh(t.Context())

	var calls int
	c.Subscribe(func(State) { calls++ })
	c.Close()

	assert.Equal(t, Loaded{Records: sampleRecords()}, c.Refresh(t.Context()))
	assert.Zero(t, calls)
	assert.Empty(t, rec.all())
	store.AssertNumberOfCalls(t, "ListCustomers", 1)
}

func TestClose_DiscardsInFlightCompletion(t *testing.T) {
	c, store, rec, metrics := newTestController(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	store.On("ListCustomers", mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil, errors.New("late")).Once()

	done := c.RefreshAsync(t.Context())
	<-entered
	c.Close()
	close(release)

	assert.Equal(t, Loading{}, <-done)
	assert.Empty(t, rec.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StaleCompletions))
}

func TestConcurrentRefreshes(t *testing.T) {
	c, store, _, _ := newTestController(t)
	store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Refresh(t.Context())
		}()
	}
	wg.Wait()

	assert.Equal(t, Loaded{Records: sampleRecords()}, c.State())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{"remote failure", &remote.Failure{Code: remote.CodeConnRefused, Message: "dial tcp: connection refused"}, remote.CodeConnRefused, "dial tcp: connection refused"},
		{"wrapped remote failure", fmt.Errorf("list: %w", &remote.Failure{Code: remote.CodeBadRequest, Message: "bad"}), remote.CodeBadRequest, "bad"},
		{"failure without code", &remote.Failure{Message: "odd"}, CodeUnknown, "odd"},
		{"deadline", context.DeadlineExceeded, CodeAborted, DefaultErrorMessage},
		{"plain error", errors.New("x"), CodeUnknown, DefaultErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message := Classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestNilMetrics(t *testing.T) {
	store := new(MockStore)
	store.On("ListCustomers", mock.Anything).Return(sampleRecords(), nil).Once()
	c := NewController(store, nil)

	assert.NotPanics(t, func() { c.Refresh(t.Context()) })
}
