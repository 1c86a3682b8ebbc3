package video

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeArchiver struct {
	names []string
	err   error
}

func (a *fakeArchiver) Archive(_ context.Context, name string, _ *EncodedArtifact) (string, error) {
	a.names = append(a.names, name)
	if a.err != nil {
		return "", a.err
	}
	return "s3://videos/" + name + ".mp4", nil
}

type serviceFixture struct {
	clock    *clockwork.FakeClock
	provider *fakeProvider
	store    *mapStore
	archiver *fakeArchiver
	service  *Service
}

func newServiceFixture(creds CredentialSource, settings *Settings, replies ...statusReply) *serviceFixture {
	clock := clockwork.NewFakeClock()
	provider := newFakeProvider(clock, replies...)
	store := newMapStore()
	archiver := &fakeArchiver{}
	logger := zap.NewNop()

	svc := NewService(
		NewSubmitter(provider, creds, settings, logger, WithSubmitterClock(clock)),
		NewPoller(provider, settings, logger, WithPollerClock(clock)),
		NewMaterializer(provider, settings, nil, logger),
		store,
		archiver,
		logger,
	)
	return &serviceFixture{clock: clock, provider: provider, store: store, archiver: archiver, service: svc}
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWith("https://files/abc:download?alt=media"))
		defer f.service.Stop()

		art, err := f.service.Run(ctx, textRequest("a cat"))

		require.NoError(t, err)
		assert.Equal(t, fakeMP4, art.Bytes)
		assert.True(t, strings.HasPrefix(art.DataURI(), "data:video/mp4;base64,"))
		assert.Equal(t, "s3://videos/op-1.mp4", art.ArchiveURL)
	})

	t.Run("after polling", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), notDone(), doneWith("https://files/v.mp4"))
		defer f.service.Stop()

		errCh := make(chan error, 1)
		go func() {
			_, err := f.service.Run(ctx, textRequest("a cat"))
			errCh <- err
		}()
		tick(f.clock, 10*time.Second)
		require.NoError(t, <-errCh)
		assert.Len(t, f.provider.queries(), 2)
	})

	t.Run("archive failure is not fatal", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWith("https://files/v.mp4"))
		f.archiver.err = errors.New("bucket missing")
		defer f.service.Stop()

		art, err := f.service.Run(ctx, textRequest("a cat"))
		require.NoError(t, err)
		assert.Empty(t, art.ArchiveURL)
	})

	t.Run("configuration error", func(t *testing.T) {
		f := newServiceFixture(staticCreds{}, testSettings(), doneWith("u"))
		defer f.service.Stop()

		_, err := f.service.Run(ctx, textRequest("a cat"))
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Equal(t, 0, f.provider.createCount())
	})

	t.Run("validation error", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWith("u"))
		defer f.service.Stop()

		_, err := f.service.Run(ctx, &GenerationRequest{Mode: ModeTextToVideo, Prompt: "x", Config: Config{Resolution: Resolution1080p, DurationSeconds: 6}})
		assert.ErrorIs(t, err, ErrConfigConflict)
		assert.Equal(t, 0, f.provider.createCount())
	})

	t.Run("submission error", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWith("u"))
		f.provider.createErr = errors.New("quota exceeded")
		defer f.service.Stop()

		_, err := f.service.Run(ctx, textRequest("a cat"))
		assert.ErrorIs(t, err, ErrSubmission)
		assert.Empty(t, f.provider.queries())
	})

	t.Run("job failed", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWithError("3", "unsafe prompt"))
		defer f.service.Stop()

		_, err := f.service.Run(ctx, textRequest("a cat"))
		assert.ErrorIs(t, err, ErrJobFailed)
		assert.Equal(t, "unsafe prompt", MessageOf(err))
		assert.Equal(t, 0, f.provider.fetchCount())
	})

	t.Run("poll error", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), statusReply{err: errors.New("502")})
		defer f.service.Stop()

		_, err := f.service.Run(ctx, textRequest("a cat"))
		assert.ErrorIs(t, err, ErrPoll)
	})

	t.Run("timed out", func(t *testing.T) {
		settings := testSettings()
		settings.Timeout = 20 * time.Second
		f := newServiceFixture(validCreds, settings, notDone())
		defer f.service.Stop()

		errCh := make(chan error, 1)
		go func() {
			_, err := f.service.Run(ctx, textRequest("a cat"))
			errCh <- err
		}()
		tick(f.clock, 10*time.Second)
		tick(f.clock, 10*time.Second)

		err := <-errCh
		assert.ErrorIs(t, err, ErrTimedOut)
		assert.Equal(t, 0, f.provider.fetchCount())
	})

	t.Run("empty artifact", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWith("https://files/v.mp4"))
		f.provider.artifact = []byte{}
		defer f.service.Stop()

		_, err := f.service.Run(ctx, textRequest("a cat"))
		assert.ErrorIs(t, err, ErrEmptyArtifact)
	})
}

func TestService_AsyncFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("status until completion", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), notDone(), doneWith("https://files/v.mp4"))
		defer f.service.Stop()

		job, err := f.service.Submit(ctx, textRequest("a cat"))
		require.NoError(t, err)
		assert.Equal(t, StatusPending, job.Status())

		f.clock.BlockUntil(1)
		st, err := f.service.Status(ctx, job.ID())
		require.NoError(t, err)
		assert.Equal(t, "pending", st.State)
		assert.Equal(t, "waiting for processing", st.Message)
		assert.False(t, st.Terminal())

		f.clock.Advance(10 * time.Second)
		require.Eventually(t, func() bool {
			j, ok := f.store.peek(job.ID())
			return ok && j.Status() == StatusCompleted
		}, time.Second, 5*time.Millisecond)

		st, err = f.service.Status(ctx, job.ID())
		require.NoError(t, err)
		assert.Equal(t, "completed", st.State)
		assert.Equal(t, "https://files/v.mp4", st.VideoURI)

		_, err = f.service.Status(ctx, job.ID())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("failed job", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWithError("3", "blocked"))
		defer f.service.Stop()

		job, err := f.service.Submit(ctx, textRequest("a cat"))
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			j, ok := f.store.peek(job.ID())
			return ok && j.Status() == StatusFailed
		}, time.Second, 5*time.Millisecond)

		st, err := f.service.Status(ctx, job.ID())
		require.NoError(t, err)
		assert.Equal(t, "failed", st.State)
		assert.Equal(t, "blocked", st.Error)
	})

	t.Run("timed out job", func(t *testing.T) {
		settings := testSettings()
		settings.Timeout = 10 * time.Second
		f := newServiceFixture(validCreds, settings, notDone())
		defer f.service.Stop()

		job, err := f.service.Submit(ctx, textRequest("a cat"))
		require.NoError(t, err)
		tick(f.clock, 10*time.Second)
		require.Eventually(t, func() bool { return f.service.poller.Active() == 0 }, time.Second, 5*time.Millisecond)

		st, err := f.service.Status(ctx, job.ID())
		require.NoError(t, err)
		assert.Equal(t, "timed_out", st.State)
		assert.True(t, st.Terminal())

		_, err = f.service.Status(ctx, job.ID())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("untracked job is resumed", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), doneWith("https://files/v.mp4"))
		defer f.service.Stop()

		job := NewJob("op-restored", *textRequest("a cat"), f.clock.Now(), 10*time.Minute)
		require.NoError(t, f.store.Save(ctx, job))

		st, err := f.service.Status(ctx, job.ID())
		require.NoError(t, err)
		assert.Equal(t, "pending", st.State)

		require.Eventually(t, func() bool {
			j, ok := f.store.peek(job.ID())
			return ok && j.Status() == StatusCompleted
		}, time.Second, 5*time.Millisecond)
		assert.Len(t, f.provider.queries(), 1)
	})

	t.Run("rejected submission is not tracked", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings(), notDone())
		defer f.service.Stop()

		_, err := f.service.Submit(ctx, textRequest(""))
		assert.ErrorIs(t, err, ErrValidation)
		assert.Empty(t, f.store.jobs)
	})

	t.Run("download", func(t *testing.T) {
		f := newServiceFixture(validCreds, testSettings())
		defer f.service.Stop()

		art, err := f.service.Download(ctx, "https://files/abc:download?alt=media")
		require.NoError(t, err)
		assert.Equal(t, fakeMP4, art.Bytes)
		assert.Equal(t, []string{"5c4d0a4aaf8e-abc"}, f.archiver.names)
	})
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "a94cc415b392-abc", artifactName("https://generativelanguage.googleapis.com/v1beta/files/abc:download?alt=media"))
	assert.Equal(t, "33363edfcd00-v.mp4", artifactName("https://files/v.mp4"))
	assert.Equal(t, "e3b0c44298fc-artifact", artifactName(""))

	t.Run("same file name on different hosts", func(t *testing.T) {
		a, b := artifactName("https://files/v.mp4"), artifactName("https://other/v.mp4")
		assert.NotEqual(t, a, b)
		assert.True(t, strings.HasSuffix(a, "-v.mp4"))
		assert.True(t, strings.HasSuffix(b, "-v.mp4"))
		assert.Equal(t, a, artifactName("https://files/v.mp4"))
	})
}
