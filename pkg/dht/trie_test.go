package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathTrie_InsertAndGetExact(t *testing.T) {
	trie := NewPathTrie[string]()

	trie.Insert(mustPath(t, "assistant/chat"), "chat-agent")
	trie.Insert(mustPath(t, "assistant/chat"), "chat-agent-2")
	trie.Insert(mustPath(t, "assistant/code"), "code-agent")

	assert.Equal(t, 3, trie.Len())
	assert.ElementsMatch(t, []string{"chat-agent", "chat-agent-2"},
		trie.GetExact(mustPath(t, "assistant/chat")))
	assert.Empty(t, trie.GetExact(mustPath(t, "assistant")),
		"exact lookup must not include children")
	assert.Empty(t, trie.GetExact(mustPath(t, "missing")))
}

func TestPathTrie_GetPrefix(t *testing.T) {
	trie := NewPathTrie[string]()

	trie.Insert(mustPath(t, "workflow"), "root")
	trie.Insert(mustPath(t, "workflow/approval"), "approval")
	trie.Insert(mustPath(t, "workflow/approval/invoice"), "invoice")
	trie.Insert(mustPath(t, "assistant/chat"), "chat")

	assert.ElementsMatch(t, []string{"root", "approval", "invoice"},
		trie.GetPrefix(mustPath(t, "workflow")))
	assert.ElementsMatch(t, []string{"approval", "invoice"},
		trie.GetPrefix(mustPath(t, "workflow/approval")))
	assert.Empty(t, trie.GetPrefix(mustPath(t, "missing")))
}

func TestPathTrie_SegmentWiseEdges(t *testing.T) {
	trie := NewPathTrie[string]()
	trie.Insert(mustPath(t, "workflow"), "wf")

	// "work" shares a textual prefix but not a segment.
	assert.Empty(t, trie.GetPrefix(mustPath(t, "work")))
}

func TestPathTrie_Remove(t *testing.T) {
	trie := NewPathTrie[string]()
	path := mustPath(t, "assistant/chat")
	trie.Insert(path, "keep")
	trie.Insert(path, "drop")

	removed := trie.Remove(path, func(v string) bool { return v == "drop" })
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"keep"}, trie.GetExact(path))
	assert.Equal(t, 1, trie.Len())

	assert.Equal(t, 0, trie.Remove(mustPath(t, "missing"), func(string) bool { return true }))
}

func TestPathTrie_Clear(t *testing.T) {
	trie := NewPathTrie[int]()
	trie.Insert(mustPath(t, "a"), 1)
	trie.Insert(mustPath(t, "a/b"), 2)

	trie.Clear()
	assert.True(t, trie.IsEmpty())
	assert.Empty(t, trie.GetPrefix(mustPath(t, "a")))
}
