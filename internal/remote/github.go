package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ReleaseAsset is a file attached to a GitHub release.
type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Release is the subset of a GitHub release the updater uses.
type Release struct {
	TagName string         `json:"tag_name"`
	Name    string         `json:"name"`
	Assets  []ReleaseAsset `json:"assets"`
}

// Version returns the tag without a leading "v".
func (r Release) Version() string {
	v := strings.TrimPrefix(r.TagName, "v")
	if v == "" {
		return r.TagName
	}
	return v
}

// ZipAsset returns the first .zip asset of the release.
func (r Release) ZipAsset() (ReleaseAsset, bool) {
	for _, a := range r.Assets {
		if strings.HasSuffix(strings.ToLower(a.Name), ".zip") {
			return a, true
		}
	}
	return ReleaseAsset{}, false
}

// ContentEntry is one item of a repository directory listing.
type ContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

func (c *Client) githubHeaders() map[string]string {
	return map[string]string{"Accept": "application/vnd.github+json"}
}

// SetGitHubToken authenticates GitHub API requests.
func (c *Client) SetGitHubToken(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	c.http.SetCommonBearerAuthToken(token)
}

// LatestRelease returns the latest published release of owner/repo.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.githubAPI, url.PathEscape(owner), url.PathEscape(repo))
	var rel Release
	if err := c.getJSON(ctx, endpoint, c.githubHeaders(), &rel); err != nil {
		return Release{}, fmt.Errorf("latest release %s/%s: %w", owner, repo, err)
	}
	return rel, nil
}

// ReleaseByTag returns the release of owner/repo tagged tag.
func (c *Client) ReleaseByTag(ctx context.Context, owner, repo, tag string) (Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.githubAPI, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(tag))
	var rel Release
	if err := c.getJSON(ctx, endpoint, c.githubHeaders(), &rel); err != nil {
		return Release{}, fmt.Errorf("release %s/%s@%s: %w", owner, repo, tag, err)
	}
	return rel, nil
}

// Contents lists the files under path in owner/repo.
func (c *Client) Contents(ctx context.Context, owner, repo, path string) ([]ContentEntry, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.githubAPI, url.PathEscape(owner), url.PathEscape(repo), strings.Trim(path, "/"))
	var entries []ContentEntry
	if err := c.getJSON(ctx, endpoint, c.githubHeaders(), &entries); err != nil {
		return nil, fmt.Errorf("contents %s/%s/%s: %w", owner, repo, path, err)
	}
	return entries, nil
}
