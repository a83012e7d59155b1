package webhook

import (
	"testing"

	"github.com/bagasta/waha-relay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfies(t *testing.T) {
	candidates := []string{"http://relay:8080/webhooks/waha"}

	cases := []struct {
		name       string
		registered []Registration
		want       bool
	}{
		{
			"exact match",
			[]Registration{{URL: "http://relay:8080/webhooks/waha", Events: RequiredEvents}},
			true,
		},
		{
			"superset of events",
			[]Registration{{URL: "http://relay:8080/webhooks/waha", Events: append([]string{"state.change"}, RequiredEvents...)}},
			true,
		},
		{
			"missing event",
			[]Registration{{URL: "http://relay:8080/webhooks/waha", Events: []string{"message"}}},
			false,
		},
		{
			"wrong url",
			[]Registration{{URL: "http://elsewhere/hook", Events: RequiredEvents}},
			false,
		},
		{
			"second entry satisfies",
			[]Registration{
				{URL: "http://elsewhere/hook", Events: RequiredEvents},
				{URL: "http://relay:8080/webhooks/waha", Events: RequiredEvents},
			},
			true,
		},
		{"empty list", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Satisfies(tc.registered, candidates, RequiredEvents))
		})
	}
}

type fakeTargetRepo struct {
	stored *Target
}

func (f *fakeTargetRepo) Get() (*Target, error) { return f.stored, nil }
func (f *fakeTargetRepo) Upsert(cfg *Target) error {
	f.stored = cfg
	return nil
}

func TestCandidateURLsPreferStoredTarget(t *testing.T) {
	origURL, origHost, origSecret := config.WebhookPublicURL, config.WebhookPublicHost, config.WebhookSecret
	defer func() {
		config.WebhookPublicURL = origURL
		config.WebhookPublicHost = origHost
		config.WebhookSecret = origSecret
	}()
	config.WebhookPublicURL = "http://env-derived:8080/webhooks/waha"
	config.WebhookPublicHost = "http://host.docker.internal:8080"

	usecase := NewTargetUsecase(&fakeTargetRepo{
		stored: &Target{URL: "http://stored:9000/webhooks/waha", Secret: "s3cret"},
	})

	urls := usecase.CandidateURLs()
	require.NotEmpty(t, urls)
	assert.Equal(t, "http://stored:9000/webhooks/waha", urls[0])
	assert.Contains(t, urls, "http://env-derived:8080/webhooks/waha")
	assert.Contains(t, urls, "http://host.docker.internal:8080/webhooks/waha")
}

func TestSaveValidatesAndAppliesRuntimeConfig(t *testing.T) {
	origURL, origHost, origSecret := config.WebhookPublicURL, config.WebhookPublicHost, config.WebhookSecret
	defer func() {
		config.WebhookPublicURL = origURL
		config.WebhookPublicHost = origHost
		config.WebhookSecret = origSecret
	}()

	repo := &fakeTargetRepo{}
	usecase := NewTargetUsecase(repo)

	_, err := usecase.Save("   ", "whatever")
	assert.Error(t, err, "a blank url must be rejected")

	cfg, err := usecase.Save(" http://relay:8080/webhooks/waha ", " top-secret ")
	require.NoError(t, err)
	assert.Equal(t, "http://relay:8080/webhooks/waha", cfg.URL)
	assert.Equal(t, "top-secret", cfg.Secret)
	assert.Equal(t, "http://relay:8080/webhooks/waha", config.WebhookPublicURL)
	assert.Equal(t, "top-secret", usecase.Secret())
}
