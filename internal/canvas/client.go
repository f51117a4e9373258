// Package canvas is the ingestion adapter: a typed REST client for the
// Canvas LMS API. It only downloads and parses; every grading rule lives in
// the grades package.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
)

const apiPrefix = "/api/v1"

// perPage is the page size requested from the API. Canvas defaults to 10,
// which makes large rosters needlessly slow to download.
const perPage = 100

// Client talks to one Canvas instance with one API token.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *log.Logger
}

// Option customizes Client construction, mostly for tests.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a client for the given base URL, e.g.
// "https://canvas.ubc.ca". The URL must include a scheme.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("canvas: invalid base URL %q; expected a URL like https://canvas.ubc.ca", baseURL)
	}
	c := &Client{
		baseURL: trimmed,
		token:   token,
		httpc:   http.DefaultClient,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get performs one request and decodes the body into dst. It returns the
// URL of the next page when the response carries a rel="next" Link header.
func (c *Client) get(ctx context.Context, rawurl string, dst any) (next string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return "", fmt.Errorf("canvas: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("canvas request", "url", rawurl)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("canvas: request %s: %w", rawurl, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", &AuthError{Reason: "your API token is invalid or expired"}
	case http.StatusForbidden:
		return "", &AuthError{Reason: "your API token is not authorized to access this resource"}
	case http.StatusNotFound:
		return "", &NotFoundError{Resource: "resource", ID: rawurl}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("canvas: %s returned %s: %s", rawurl, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return "", fmt.Errorf("canvas: decode %s: %w", rawurl, err)
	}
	return nextPage(resp.Header.Get("Link")), nil
}

// nextPage extracts the rel="next" target from a Link header, or "".
func nextPage(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(section[0]), "<>")
		for _, param := range section[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target
			}
		}
	}
	return ""
}

// getAll walks every page of a collection endpoint and returns the
// concatenated result in platform order.
func getAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", fmt.Sprint(perPage))
	next := fmt.Sprintf("%s%s%s?%s", c.baseURL, apiPrefix, path, query.Encode())

	var all []T
	for next != "" {
		var page []T
		n, err := c.get(ctx, next, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		next = n
	}
	return all, nil
}

// ListCourses returns every course the token can access.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	return getAll[Course](ctx, c, "/courses", nil)
}

// GetCourse fetches one course by id.
func (c *Client) GetCourse(ctx context.Context, courseID string) (Course, error) {
	var course Course
	rawurl := fmt.Sprintf("%s%s/courses/%s", c.baseURL, apiPrefix, url.PathEscape(courseID))
	if _, err := c.get(ctx, rawurl, &course); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return Course{}, &NotFoundError{Resource: "course", ID: courseID}
		}
		var auth *AuthError
		if errors.As(err, &auth) {
			return Course{}, &AuthError{Reason: fmt.Sprintf(
				"your API token is not authorized to access course %s; run `gradeport show-courses` to see all courses you can access", courseID)}
		}
		return Course{}, err
	}
	return course, nil
}

// Enrollments returns the student enrollments for a course, filtered to the
// given enrollment state (e.g. "active").
func (c *Client) Enrollments(ctx context.Context, courseID, state string) ([]Enrollment, error) {
	query := url.Values{}
	query.Add("type[]", "StudentEnrollment")
	if state != "" {
		query.Add("state[]", state)
	}
	return getAll[Enrollment](ctx, c, "/courses/"+url.PathEscape(courseID)+"/enrollments", query)
}

// Sections returns the sections of a course.
func (c *Client) Sections(ctx context.Context, courseID string) ([]Section, error) {
	return getAll[Section](ctx, c, "/courses/"+url.PathEscape(courseID)+"/sections", nil)
}

// Assignments returns every assignment of a course in platform order.
func (c *Client) Assignments(ctx context.Context, courseID string) ([]Assignment, error) {
	return getAll[Assignment](ctx, c, "/courses/"+url.PathEscape(courseID)+"/assignments", nil)
}

// Submissions returns every submission for one assignment.
func (c *Client) Submissions(ctx context.Context, courseID, assignmentID string) ([]Submission, error) {
	path := fmt.Sprintf("/courses/%s/assignments/%s/submissions",
		url.PathEscape(courseID), url.PathEscape(assignmentID))
	return getAll[Submission](ctx, c, path, nil)
}

// Users returns the users of a course, used to resolve grader and student
// names for the charts.
func (c *Client) Users(ctx context.Context, courseID string) ([]User, error) {
	return getAll[User](ctx, c, "/courses/"+url.PathEscape(courseID)+"/users", nil)
}
