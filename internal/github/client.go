package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MaxPerPage is the largest page GitHub serves for the commits endpoint
const MaxPerPage = 100

// Error classes of the commit source. Returned errors wrap one of these
// alongside the underlying go-github error.
var (
	ErrRateLimited = errors.New("github rate limit exceeded")
	ErrNotFound    = errors.New("repository, branch or path not found")
	ErrMalformed   = errors.New("malformed github response")
	ErrNetwork     = errors.New("github request failed")
	// ErrForbidden covers bad tokens and access denials that are not rate limits
	ErrForbidden = errors.New("github access denied")
)

// ListOptions controls how much history a single run fetches
type ListOptions struct {
	// PerPage is the page size, capped at MaxPerPage
	PerPage int

	// MaxPages bounds pagination; 1 fetches a single page
	MaxPages int

	// StopAt ends pagination early once this commit id has been seen
	StopAt string
}

// Client lists commits touching a file through the GitHub REST API,
// with rate limiting
type Client struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	logger      *logrus.Logger
}

// Options configures NewClient
type Options struct {
	Token     string
	BaseURL   string // GitHub Enterprise or test server; empty for api.github.com
	RateLimit float64
	Timeout   time.Duration
	UserAgent string
}

// NewClient creates a new GitHub client with rate limiting
func NewClient(opts Options, logger *logrus.Logger) (*Client, error) {
	client := github.NewClient(&http.Client{Timeout: opts.Timeout})
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = base
	}

	limit := rate.Limit(opts.RateLimit)
	if opts.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Client{
		client:      client,
		rateLimiter: rate.NewLimiter(limit, 1),
		logger:      logger,
	}, nil
}

// ListCommits returns commits that touched target.Path on target.Branch,
// newest first. An empty slice means the path has no history on the branch.
func (c *Client) ListCommits(ctx context.Context, target models.Target, opts ListOptions) ([]models.CommitRecord, error) {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 30
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	listOpts := &github.CommitsListOptions{
		SHA:  target.Branch,
		Path: target.Path,
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	var records []models.CommitRecord
	for page := 1; page <= maxPages; page++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		commits, resp, err := c.client.Repositories.ListCommits(ctx, target.Owner, target.Repo, listOpts)
		if err != nil {
			return nil, classify(err)
		}
		c.logRateLimit(resp)

		reachedStop := false
		for _, commit := range commits {
			record, err := toRecord(commit)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
			if opts.StopAt != "" && record.SHA == opts.StopAt {
				reachedStop = true
			}
		}

		c.logger.WithFields(logrus.Fields{
			"repo":    target.FullName(),
			"branch":  target.Branch,
			"path":    target.Path,
			"page":    page,
			"commits": len(commits),
		}).Debug("fetched commit page")

		if reachedStop || resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	if records == nil {
		records = []models.CommitRecord{}
	}
	return records, nil
}

func toRecord(commit *github.RepositoryCommit) (models.CommitRecord, error) {
	sha := commit.GetSHA()
	if sha == "" {
		return models.CommitRecord{}, fmt.Errorf("%w: commit without sha", ErrMalformed)
	}

	// Login is only present when the author email maps to a GitHub account
	author := commit.GetAuthor().GetLogin()
	if author == "" {
		author = commit.GetCommit().GetAuthor().GetName()
	}

	return models.NewCommitRecord(sha, author, commit.GetCommit().GetMessage(), commit.GetHTMLURL()), nil
}

// classify maps go-github errors onto the commit source error classes
func classify(err error) error {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		respErr  *github.ErrorResponse
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case errors.As(err, &respErr) && respErr.Response != nil:
		switch respErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusConflict:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	case errors.As(err, &syntax), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}

func (c *Client) logRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}

	// Warn if getting low
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 10 {
		c.logger.WithFields(logrus.Fields{
			"remaining": resp.Rate.Remaining,
			"limit":     resp.Rate.Limit,
			"reset":     resp.Rate.Reset.Time,
		}).Warn("GitHub rate limit low")
	}
}
