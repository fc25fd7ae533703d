package model

import (
	"sort"
	"strings"
	"time"
)

// RefKind is the relation a post has to another post. Values follow the
// X API v2 "referenced_tweets.type" field.
type RefKind string

const (
	RefReply  RefKind = "replied_to"
	RefQuote  RefKind = "quoted"
	RefRepost RefKind = "retweeted"
)

// Reference points from a post to another post by id.
type Reference struct {
	Kind RefKind `json:"type"`
	ID   string  `json:"id"`
}

// Metrics holds public engagement counters.
type Metrics struct {
	Likes       int `json:"like_count"`
	Reposts     int `json:"retweet_count"`
	Replies     int `json:"reply_count"`
	Impressions int `json:"impression_count"`
}

// Add returns the element-wise sum of m and o.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Likes:       m.Likes + o.Likes,
		Reposts:     m.Reposts + o.Reposts,
		Replies:     m.Replies + o.Replies,
		Impressions: m.Impressions + o.Impressions,
	}
}

// URLEntity maps a short link found in the text to its canonical target.
type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url,omitempty"`
	DisplayURL  string `json:"display_url,omitempty"`
}

// Target returns the expanded URL, falling back to the short link itself.
func (u URLEntity) Target() string {
	if strings.TrimSpace(u.ExpandedURL) != "" {
		return u.ExpandedURL
	}
	return u.URL
}

type Entities struct {
	URLs []URLEntity `json:"urls,omitempty"`
}

// Note is the full body of a long-form post; Text on the post is truncated.
type Note struct {
	Text     string   `json:"text"`
	Entities Entities `json:"entities"`
}

// Article is a long-form X article attached to a post. Text on the post
// then holds only a link to it.
type Article struct {
	Title         string   `json:"title,omitempty"`
	PlainText     string   `json:"plain_text,omitempty"`
	CoverMedia    string   `json:"cover_media,omitempty"`
	MediaEntities []string `json:"media_entities,omitempty"`
}

type Attachments struct {
	MediaKeys []string `json:"media_keys,omitempty"`
}

// Post is a single fetched post. Posts are read-only once fetched.
type Post struct {
	ID          string      `json:"id"`
	AuthorID    string      `json:"author_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Text        string      `json:"text"`
	Metrics     *Metrics    `json:"public_metrics,omitempty"`
	References  []Reference `json:"referenced_tweets,omitempty"`
	Entities    Entities    `json:"entities"`
	Note        *Note       `json:"note_tweet,omitempty"`
	Attachments Attachments `json:"attachments"`
	Article     *Article    `json:"article,omitempty"`
}

// IsArticle reports whether p carries an article with a title or body.
func (p Post) IsArticle() bool {
	return p.Article != nil && (strings.TrimSpace(p.Article.Title) != "" || strings.TrimSpace(p.Article.PlainText) != "")
}

// MediaKeys lists the attachment keys of p followed by its article cover.
func (p Post) MediaKeys() []string {
	keys := append([]string(nil), p.Attachments.MediaKeys...)
	if p.Article != nil && p.Article.CoverMedia != "" {
		keys = append(keys, p.Article.CoverMedia)
	}
	return keys
}

// Body returns the text and link entities to render, preferring the long-form note.
func (p Post) Body() (string, Entities) {
	if p.Note != nil && strings.TrimSpace(p.Note.Text) != "" {
		ents := p.Note.Entities
		if len(ents.URLs) == 0 {
			ents = p.Entities
		}
		return p.Note.Text, ents
	}
	return p.Text, p.Entities
}

// PublicMetrics returns the post metrics or zero values when absent.
func (p Post) PublicMetrics() Metrics {
	if p.Metrics == nil {
		return Metrics{}
	}
	return *p.Metrics
}

// Ref returns the first reference of the given kind.
func (p Post) Ref(kind RefKind) (Reference, bool) {
	for _, r := range p.References {
		if r.Kind == kind {
			return r, true
		}
	}
	return Reference{}, false
}

// User is an account referenced by the fetched posts.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Variant is one encoding of a video or animated gif.
type Variant struct {
	BitRate     int    `json:"bit_rate,omitempty"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// Media is an attachment referenced by media key.
type Media struct {
	Key        string    `json:"media_key"`
	Type       string    `json:"type"`
	URL        string    `json:"url,omitempty"`
	PreviewURL string    `json:"preview_image_url,omitempty"`
	Variants   []Variant `json:"variants,omitempty"`
}

// Includes carries the posts, users and media referenced by the primary posts.
type Includes struct {
	Posts []Post  `json:"tweets,omitempty"`
	Users []User  `json:"users,omitempty"`
	Media []Media `json:"media,omitempty"`
}

// Merge appends posts, users and media from o that are not already present.
func (in *Includes) Merge(o Includes) {
	seenPosts := make(map[string]struct{}, len(in.Posts))
	for _, p := range in.Posts {
		seenPosts[p.ID] = struct{}{}
	}
	for _, p := range o.Posts {
		if _, ok := seenPosts[p.ID]; ok {
			continue
		}
		seenPosts[p.ID] = struct{}{}
		in.Posts = append(in.Posts, p)
	}
	seenUsers := make(map[string]struct{}, len(in.Users))
	for _, u := range in.Users {
		seenUsers[u.ID] = struct{}{}
	}
	for _, u := range o.Users {
		if _, ok := seenUsers[u.ID]; ok {
			continue
		}
		seenUsers[u.ID] = struct{}{}
		in.Users = append(in.Users, u)
	}
	seenMedia := make(map[string]struct{}, len(in.Media))
	for _, m := range in.Media {
		seenMedia[m.Key] = struct{}{}
	}
	for _, m := range o.Media {
		if _, ok := seenMedia[m.Key]; ok {
			continue
		}
		seenMedia[m.Key] = struct{}{}
		in.Media = append(in.Media, m)
	}
}

// PostCollection is the result of one fetch or snapshot read.
type PostCollection struct {
	Posts        []Post   `json:"tweets"`
	Includes     Includes `json:"includes"`
	RequestCount int      `json:"request_count"`
	Exhausted    bool     `json:"exhausted"`
	FromCache    bool     `json:"-"`
}

// Usernames maps author ids to usernames from the included users.
func (c PostCollection) Usernames() map[string]string {
	out := make(map[string]string, len(c.Includes.Users))
	for _, u := range c.Includes.Users {
		out[u.ID] = u.Username
	}
	return out
}

// Index is an id-keyed lookup over every post in a collection.
type Index map[string]Post

// NewIndex indexes the primary posts and the included posts. Primary posts win on id clashes.
func NewIndex(c PostCollection) Index {
	idx := make(Index, len(c.Posts)+len(c.Includes.Posts))
	for _, p := range c.Includes.Posts {
		idx[p.ID] = p
	}
	for _, p := range c.Posts {
		idx[p.ID] = p
	}
	return idx
}

// SortChronological orders posts by creation time, then id.
func SortChronological(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
}
