package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeLauncher struct {
	mu       sync.Mutex
	launched []Job
	err      error
	block    chan struct{}
}

func (f *fakeLauncher) Launch(ctx context.Context, job Job) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched = append(f.launched, job)
	return f.err
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launched)
}

type failures struct {
	mu   sync.Mutex
	jobs []Job
	errs []error
}

func (f *failures) record(_ context.Context, job Job, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	f.errs = append(f.errs, err)
}

func (f *failures) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func startRunner(t *testing.T, r *Runner) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestRunnerLaunchesSubmittedJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	launcher := &fakeLauncher{}
	r := NewRunner(launcher, Config{Workers: 2, QueueSize: 4, Timeout: time.Second}, nil, nil)
	stop := startRunner(t, r)

	id, err := r.Submit(Job{AccountID: 7, Preferences: "go"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool { return launcher.count() == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, id, launcher.launched[0].ID)
	assert.Equal(t, int64(7), launcher.launched[0].AccountID)
}

func TestRunnerReportsLaunchFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("worker down")
	fails := &failures{}
	r := NewRunner(&fakeLauncher{err: boom}, Config{Workers: 1, QueueSize: 1, Timeout: time.Second}, fails.record, nil)
	stop := startRunner(t, r)

	_, err := r.Submit(Job{ID: "job-1", AccountID: 3})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fails.count() == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, "job-1", fails.jobs[0].ID)
	assert.ErrorIs(t, fails.errs[0], boom)
}

func TestRunnerSubmitDoesNotBlockWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Not started, so nothing drains the queue.
	r := NewRunner(&fakeLauncher{}, Config{Workers: 1, QueueSize: 1}, nil, nil)
	_, err := r.Submit(Job{AccountID: 1})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(Job{AccountID: 2})
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}

func TestRunnerWithoutLauncherIsUnavailable(t *testing.T) {
	r := NewRunner(nil, Config{}, nil, nil)
	_, err := r.Submit(Job{AccountID: 1})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRunnerShutdownFailsQueuedJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	launcher := &fakeLauncher{block: make(chan struct{})}
	fails := &failures{}
	r := NewRunner(launcher, Config{Workers: 1, QueueSize: 4, Timeout: time.Second}, fails.record, nil)
	stop := startRunner(t, r)

	for i := 0; i < 3; i++ {
		_, err := r.Submit(Job{AccountID: int64(i + 1)})
		require.NoError(t, err)
	}

	// Let the worker pick up the first job, then shut down while it is blocked.
	time.Sleep(20 * time.Millisecond)
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(launcher.block)
	}()
	stop()

	assert.Equal(t, 1, launcher.count())
	assert.Equal(t, 2, fails.count())
	for _, err := range fails.errs {
		assert.ErrorIs(t, err, ErrStopped)
	}

	_, err := r.Submit(Job{AccountID: 9})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestHTTPLauncherPostsJob(t *testing.T) {
	var got launchRequest
	var secret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Worker-Secret")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	l := NewHTTPLauncher(srv.URL, "s3cret", time.Second)
	err := l.Launch(context.Background(), Job{ID: "j1", AccountID: 4, Address: "+2348000000000", Preferences: "algebra"})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, launchRequest{JobID: "j1", AccountID: 4, PhoneNumber: "+2348000000000", Preferences: "algebra"}, got)
}

func TestHTTPLauncherRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPLauncher(srv.URL, "", time.Second).Launch(context.Background(), Job{ID: "j1"})
	assert.ErrorIs(t, err, errRejected)
}

type fakeConn struct {
	method string
	req    *structpb.Struct
	resp   map[string]any
	err    error
}

func (f *fakeConn) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	f.method = method
	f.req = args.(*structpb.Struct)
	if f.err != nil {
		return f.err
	}
	s, err := structpb.NewStruct(f.resp)
	if err != nil {
		return err
	}
	reply.(*structpb.Struct).Fields = s.Fields
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not implemented")
}

func TestGrpcLauncherInvokesGenerateCourse(t *testing.T) {
	conn := &fakeConn{resp: map[string]any{"accepted": true}}
	l := NewGrpcLauncherWithConn(conn, nil)

	err := l.Launch(context.Background(), Job{ID: "j1", AccountID: 12, Address: "+1555", Preferences: "rust"})
	require.NoError(t, err)

	assert.Equal(t, GenerateCourseMethod, conn.method)
	fields := conn.req.GetFields()
	assert.Equal(t, "j1", fields["job_id"].GetStringValue())
	assert.Equal(t, float64(12), fields["account_id"].GetNumberValue())
	assert.Equal(t, "rust", fields["preferences"].GetStringValue())
}

func TestGrpcLauncherRejected(t *testing.T) {
	conn := &fakeConn{resp: map[string]any{"accepted": false, "error": "quota exceeded"}}
	err := NewGrpcLauncherWithConn(conn, nil).Launch(context.Background(), Job{ID: "j1"})
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, err.Error(), "quota exceeded")
}
