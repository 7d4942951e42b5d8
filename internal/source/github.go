package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"

	"relnotes.app/relnotes/internal/model"
)

type GitHubConfig struct {
	Token   string
	BaseURL string // empty = api.github.com
}

// GitHubAdapter fetches a single release by owner/repo and tag. The result
// sequence has length at most one.
type GitHubAdapter struct {
	client *github.Client
}

func NewGitHubAdapter(cfg GitHubConfig) (*GitHubAdapter, error) {
	client := github.NewClient(nil)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing github base URL: %w", err)
		}
		client.BaseURL = base
	}
	return &GitHubAdapter{client: client}, nil
}

func (a *GitHubAdapter) Fetch(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
	owner, repo, ok := strings.Cut(projectOrRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, &FetchError{Kind: FetchNotFound, Detail: fmt.Sprintf("%q is not an owner/repo", projectOrRepo)}
	}

	release, resp, err := a.client.Repositories.GetReleaseByTag(ctx, owner, repo, versionOrTag)

	// Tags are commonly published with a leading "v" the user omits; try
	// once more before reporting not found.
	if isNotFound(resp) && !strings.HasPrefix(versionOrTag, "v") {
		release, resp, err = a.client.Repositories.GetReleaseByTag(ctx, owner, repo, "v"+versionOrTag)
	}

	if err != nil {
		return nil, a.mapError("fetching release", err, resp)
	}

	record := model.ReleaseRecord{
		Tag:  release.GetTagName(),
		Name: release.GetName(),
		Body: release.GetBody(),
	}
	if ts := release.GetPublishedAt(); !ts.IsZero() {
		record.PublishedAt = ts.Time
	}

	return []model.RawRecord{model.ReleaseRaw(record)}, nil
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound
}

func (a *GitHubAdapter) mapError(op string, err error, resp *github.Response) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return &FetchError{Kind: FetchRateLimited, Detail: op, Err: err}
	}

	if resp != nil && resp.Response != nil {
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return &FetchError{Kind: FetchNotFound, Detail: op, Err: err}
		case resp.StatusCode == http.StatusTooManyRequests:
			return &FetchError{Kind: FetchRateLimited, Detail: op, Err: err}
		case resp.StatusCode >= 500:
			return &FetchError{Kind: FetchUnavailable, Detail: op, Err: err}
		}
	}

	return &FetchError{Kind: FetchUnavailable, Detail: op, Err: err}
}
