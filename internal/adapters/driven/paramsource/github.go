package paramsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure GitHubResolver implements the interface.
var _ driven.ParameterSetResolver = (*GitHubResolver)(nil)

// GitHubTimeout is the HTTP timeout of the GitHub client.
const GitHubTimeout = 30 * time.Second

// GitHubResolver fetches parameter sets from GitHub repositories.
type GitHubResolver struct {
	gh *gh.Client
}

// NewGitHubResolver creates a resolver. An empty token reads public
// repositories anonymously.
func NewGitHubResolver(ctx context.Context, token string) *GitHubResolver {
	if token == "" {
		return NewGitHubResolverWithClient(gh.NewClient(&http.Client{Timeout: GitHubTimeout}))
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = GitHubTimeout
	return NewGitHubResolverWithClient(gh.NewClient(tc))
}

// NewGitHubResolverWithClient creates a resolver around a go-github client.
func NewGitHubResolverWithClient(client *gh.Client) *GitHubResolver {
	return &GitHubResolver{gh: client}
}

// Scheme returns "github".
func (r *GitHubResolver) Scheme() string { return "github" }

// GitHubRef is a parsed github:// reference.
type GitHubRef struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// ParseGitHubRef parses github://owner/repo/path[@ref].
func ParseGitHubRef(ref string) (GitHubRef, error) {
	rest, ok := strings.CutPrefix(ref, "github://")
	if !ok {
		return GitHubRef{}, fmt.Errorf("%w: %q is not a github reference", domain.ErrInvalidInput, ref)
	}
	var out GitHubRef
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		out.Ref = rest[i+1:]
		rest = rest[:i]
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || strings.Trim(parts[2], "/") == "" {
		return GitHubRef{}, fmt.Errorf("%w: %q should be github://owner/repo/path[@ref]", domain.ErrInvalidInput, ref)
	}
	out.Owner, out.Repo, out.Path = parts[0], parts[1], strings.Trim(parts[2], "/")
	return out, nil
}

// Resolve fetches the file. Files over 1MB are downloaded separately
// because the contents API does not inline them.
func (r *GitHubResolver) Resolve(ctx context.Context, ref string) (domain.ParameterSet, error) {
	loc, err := ParseGitHubRef(ref)
	if err != nil {
		return domain.ParameterSet{}, err
	}

	opts := &gh.RepositoryContentGetOptions{Ref: loc.Ref}
	file, _, _, err := r.gh.Repositories.GetContents(ctx, loc.Owner, loc.Repo, loc.Path, opts)
	if err != nil {
		return domain.ParameterSet{}, wrapGitHubError(err, "get contents")
	}
	if file == nil {
		return domain.ParameterSet{}, fmt.Errorf("%w: %s is a directory, not a file", domain.ErrInvalidInput, ref)
	}

	var content []byte
	if file.GetEncoding() == "none" {
		rc, _, err := r.gh.Repositories.DownloadContents(ctx, loc.Owner, loc.Repo, loc.Path, opts)
		if err != nil {
			return domain.ParameterSet{}, wrapGitHubError(err, "download contents")
		}
		defer rc.Close()
		if content, err = io.ReadAll(io.LimitReader(rc, MaxParameterSetSize)); err != nil {
			return domain.ParameterSet{}, fmt.Errorf("read parameter set: %w", err)
		}
	} else {
		decoded, err := file.GetContent()
		if err != nil {
			return domain.ParameterSet{}, fmt.Errorf("decode content: %w", err)
		}
		content = []byte(decoded)
	}
	return newParameterSet(path.Base(loc.Path), ref, content)
}

// wrapGitHubError maps go-github errors onto domain errors.
func wrapGitHubError(err error, operation string) error {
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: %w: resets at %s", operation, domain.ErrRateLimited,
			rateLimitErr.Rate.Reset.Format(time.RFC3339))
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %s", operation, domain.ErrNotFound, ghErr.Message)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
