package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	jira "github.com/andygrunwald/go-jira"

	"relnotes.app/relnotes/internal/model"
)

type JiraConfig struct {
	BaseURL  string
	Username string
	APIToken string
	PageSize int
}

// JiraAdapter fetches issues by project key and fix version. It paginates
// until exhaustion and returns the union of all pages.
type JiraAdapter struct {
	client   *jira.Client
	pageSize int
}

func NewJiraAdapter(cfg JiraConfig) (*JiraAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}

	// jira.NewClient takes an interface; a typed-nil *http.Client would
	// bypass its nil check, so default explicitly instead.
	httpClient := http.DefaultClient
	if cfg.Username != "" && cfg.APIToken != "" {
		tp := jira.BasicAuthTransport{
			Username: cfg.Username,
			Password: cfg.APIToken,
		}
		httpClient = tp.Client()
	}

	client, err := jira.NewClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating jira client: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return &JiraAdapter{client: client, pageSize: pageSize}, nil
}

func (a *JiraAdapter) Fetch(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
	jql := fmt.Sprintf("project = %s AND fixVersion = %q ORDER BY key ASC", projectOrRepo, versionOrTag)

	records := []model.RawRecord{}
	startAt := 0
	for {
		issues, resp, err := a.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
			StartAt:    startAt,
			MaxResults: a.pageSize,
			Fields:     []string{"summary", "issuetype", "status", "fixVersions"},
		})
		if err != nil {
			return nil, a.mapError("searching issues", err, resp)
		}

		for _, issue := range issues {
			records = append(records, model.IssueRaw(a.mapIssue(issue, versionOrTag)))
		}

		startAt += len(issues)
		if len(issues) == 0 || resp == nil || startAt >= resp.Total {
			break
		}
	}

	return records, nil
}

// ReleaseDate resolves the fix version's release date from the project's
// version list. An unknown version is not an error; the date is simply
// empty.
func (a *JiraAdapter) ReleaseDate(ctx context.Context, projectOrRepo, versionOrTag string) (string, error) {
	project, resp, err := a.client.Project.GetWithContext(ctx, projectOrRepo)
	if err != nil {
		return "", a.mapError("fetching project versions", err, resp)
	}

	for _, v := range project.Versions {
		if v.Name == versionOrTag {
			return v.ReleaseDate, nil
		}
	}

	return "", nil
}

func (a *JiraAdapter) mapIssue(issue jira.Issue, fixVersion string) model.IssueRecord {
	record := model.IssueRecord{
		ID:         issue.Key,
		FixVersion: fixVersion,
	}
	if issue.Fields == nil {
		return record
	}

	record.Title = issue.Fields.Summary
	record.Type = issue.Fields.Type.Name
	if issue.Fields.Status != nil {
		record.Status = issue.Fields.Status.Name
	}
	// Prefer the version name Jira reports over the query parameter.
	for _, fv := range issue.Fields.FixVersions {
		if fv != nil && fv.Name != "" {
			record.FixVersion = fv.Name
			break
		}
	}

	return record
}

func (a *JiraAdapter) mapError(op string, err error, resp *jira.Response) error {
	// Cancellation and deadlines are the caller's signal, not an upstream
	// fault; let them surface as-is.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp != nil && resp.Response != nil {
		switch {
		// Jira reports an unknown project or fix version as a 400-level
		// JQL validation error.
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
			return &FetchError{Kind: FetchNotFound, Detail: op, Err: err}
		case resp.StatusCode == http.StatusTooManyRequests:
			return &FetchError{Kind: FetchRateLimited, Detail: op, Err: err}
		case resp.StatusCode >= 500:
			return &FetchError{Kind: FetchUnavailable, Detail: op, Err: err}
		}
	}

	return &FetchError{Kind: FetchUnavailable, Detail: op, Err: err}
}
