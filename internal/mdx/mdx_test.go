package mdx

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectComponentsImportsExports(t *testing.T) {
	content := `# Title

import { Button } from './Button'

Normal markdown paragraph.

<Button onClick={() => console.log('test')}>
  Click me
</Button>

Another paragraph.

export default Button
`
	r := Detect(content)

	assert.True(t, r.IsProtected(3), "import")
	assert.False(t, r.IsProtected(5))
	assert.True(t, r.IsProtected(7))
	assert.True(t, r.IsProtected(8))
	assert.True(t, r.IsProtected(9))
	assert.False(t, r.IsProtected(11))
	assert.True(t, r.IsProtected(13), "export")
}

func TestDetectSelfClosing(t *testing.T) {
	r := Detect("# Title\n\n<CustomComponent prop=\"value\" />\n\nNormal text.")

	assert.True(t, r.IsProtected(3))
	assert.False(t, r.IsProtected(5))
	assert.Equal(t, []Interval{{Start: 3, End: 3}}, r.Intervals())
}

func TestDetectExpressions(t *testing.T) {
	content := `# Title

Some text with {variable} expression.

<Component prop={someValue}>
  Content with {anotherVariable} here
</Component>

Regular text.`
	r := Detect(content)

	assert.True(t, r.IsProtected(3), "balanced braces outside a component still protect the line")
	for line := 5; line <= 7; line++ {
		assert.True(t, r.IsProtected(line), "component line %d", line)
	}
	assert.False(t, r.IsProtected(9))
}

func TestDetectNestedComponents(t *testing.T) {
	content := `<OuterComponent>
  <InnerComponent prop="value">
    <DeepComponent />
  </InnerComponent>
</OuterComponent>`
	r := Detect(content)

	for line := 1; line <= 5; line++ {
		assert.True(t, r.IsProtected(line), "line %d", line)
	}
	assert.Equal(t, []Interval{{Start: 1, End: 5}}, r.Intervals())
}

func TestDetectSameNameNestingIsNotDisambiguated(t *testing.T) {
	// Only one open component is tracked: the first inner close ends the region.
	content := `<Tabs>
  <Tabs>
    inner
  </Tabs>
  outer tail
</Tabs>`
	r := Detect(content)

	assert.Equal(t, Interval{Start: 1, End: 4}, r.Intervals()[0])
	assert.False(t, r.IsProtected(5))
}

func TestDetectMixedContent(t *testing.T) {
	content := `# Heading

Regular paragraph.

import React from 'react'

<Component>
  JSX content
</Component>

Another paragraph.

{/* JSX comment */}

Final paragraph.

export { Component }`
	r := Detect(content)

	for _, line := range []int{1, 3, 11, 15} {
		assert.False(t, r.IsProtected(line), "line %d", line)
	}
	for _, line := range []int{5, 7, 8, 9, 13, 17} {
		assert.True(t, r.IsProtected(line), "line %d", line)
	}
}

func TestDetectRegionsList(t *testing.T) {
	content := `# Title

import { Button } from './Button'

<Button>Click</Button>

Normal text.

export default Button`
	regions := Detect(content).Intervals()

	require.Len(t, regions, 3)
	assert.Contains(t, regions, Interval{Start: 3, End: 3})
	assert.Contains(t, regions, Interval{Start: 5, End: 5})
	assert.Contains(t, regions, Interval{Start: 9, End: 9})
}

func TestDetectUnclosedComponentRunsToEnd(t *testing.T) {
	r := Detect("intro\n<Callout>\nbody\nmore body")

	assert.False(t, r.IsProtected(1))
	assert.True(t, r.IsProtected(2))
	assert.True(t, r.IsProtected(4))
}

func TestDetectEmptyAndPlainMarkdown(t *testing.T) {
	empty := Detect("")
	assert.Empty(t, empty.Intervals())
	assert.False(t, empty.IsProtected(1))

	content := `# Title

This is a regular markdown file.

## Subtitle

- List item 1
- List item 2

Regular paragraph.`
	r := Detect(content)
	for line := 1; line <= 10; line++ {
		assert.False(t, r.IsProtected(line), "line %d", line)
	}
	assert.Zero(t, r.Len())
}

func TestForPath(t *testing.T) {
	text := "import x from 'y'\n{expr}"

	assert.Equal(t, 2, ForPath("docs/page.MDX", text).Len())
	assert.Zero(t, ForPath("docs/page.md", text).Len())
	assert.False(t, ForPath("notes.txt", text).IsProtected(1))
}

func TestIsProtectedLargeDocument(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "text %d\n<Note />\n", i)
	}
	r := Detect(sb.String())
	require.Equal(t, 200, r.Len())

	for line := 1; line <= 400; line++ {
		want := line%2 == 0
		assert.Equal(t, want, r.IsProtected(line), "line %d", line)
	}
	assert.False(t, r.IsProtected(0))
	assert.False(t, r.IsProtected(401))
}

func TestNilRegions(t *testing.T) {
	var r *Regions
	assert.False(t, r.IsProtected(1))
	assert.Nil(t, r.Intervals())
	assert.Zero(t, r.Len())
}
