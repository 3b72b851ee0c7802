package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogPostPage = `<!DOCTYPE html>
<html>
<head><title>Prybaby drop</title><script>var tracking = "sold out";</script></head>
<body>
  <div class="sidebar">Sold out last week</div>
  <div class="post-outer">
    <div class="post-body entry-content">
      New batch of Prybabies<br>
      <b>Price is $150</b><br>
      <!-- These are sold out -->
      <style>.x{}</style>
      <span>Email to order</span>
    </div>
  </div>
  <div class="post-body">Second body should be ignored</div>
</body>
</html>`

func TestContentExtractorRunSelector(t *testing.T) {
	text, err := NewContentExtractor(DefaultBodySelector).Run([]byte(blogPostPage), "https://atwoodknives.blogspot.com/p.html")
	require.NoError(t, err)

	lines := nonEmptyLines(text)
	assert.Equal(t, []string{"New batch of Prybabies", "Price is $150", "Email to order"}, lines)
	assert.NotContains(t, text, "sidebar")
	assert.NotContains(t, text, "Second body")
	assert.NotContains(t, text, "sold out", "comments and scripts are not text")
}

func TestContentExtractorRunMissingContainer(t *testing.T) {
	text, err := NewContentExtractor(DefaultBodySelector).Run([]byte(`<html><body><p>Nothing here</p></body></html>`), "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestContentExtractorRunEmptyData(t *testing.T) {
	_, err := NewContentExtractor(DefaultBodySelector).Run(nil, "")
	assert.Error(t, err)
}

func TestContentExtractorRunCustomSelector(t *testing.T) {
	html := `<html><body><article id="main"><p>Line one</p><p>All gone</p></article></body></html>`

	text, err := NewContentExtractor("#main").Run([]byte(html), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Line one", "All gone"}, nonEmptyLines(text))
}

func TestContentExtractorRunReadabilityFallback(t *testing.T) {
	html := `<!DOCTYPE html>
<html>
<head><title>Test Article</title></head>
<body>
  <header><nav>Navigation</nav></header>
  <main>
    <article>
      <h1>Main Article Title</h1>
      <p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
      <p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
      <p>Here is some more substantial content to ensure we meet the character threshold. These are sold out.</p>
    </article>
  </main>
</body>
</html>`

	text, err := NewContentExtractor("").Run([]byte(html), "https://example.com/article")
	require.NoError(t, err)
	assert.Contains(t, text, "main content of the article")
	assert.Contains(t, text, "These are sold out")
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
