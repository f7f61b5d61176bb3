package object

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// Short returns the abbreviated form of the hash used in command output.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Exactly one of BlobHash or
// SubtreeHash is set, matching IsDir.
type TreeEntry struct {
	Name        string
	IsDir       bool
	BlobHash    Hash
	SubtreeHash Hash
}

// TreeObj holds a sorted list of tree entries for one directory snapshot.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// CommitObj represents a commit pointing to a tree with metadata.
// Parent is empty for the root commit; history is a single-parent chain.
type CommitObj struct {
	TreeHash  Hash
	Parent    Hash
	Timestamp int64
	Message   string
}
