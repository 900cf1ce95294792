package seed

import (
	"fmt"
	"time"

	"socialhub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// Factory builds fake entities. It never touches the database; the Seeder
// persists what it builds through the repositories.
type Factory struct {
	faker   *gofakeit.Faker
	opts    Options
	pwHash  string
	nextTag int
}

// NewFactory seeds the faker from opts.RandSeed, or from the clock when it
// is zero.
func NewFactory(opts Options) (*Factory, error) {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hash, err := hashPassword(DefaultPassword, opts.FastHash)
	if err != nil {
		return nil, err
	}
	return &Factory{faker: gofakeit.New(seed), opts: opts, pwHash: hash}, nil
}

// BuildUser returns an unsaved user whose password is DefaultPassword.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	f.nextTag++
	// the counter keeps generated names unique within one run
	username := fmt.Sprintf("%s%d", f.faker.Username(), f.nextTag)
	if len(username) > 30 {
		username = username[len(username)-30:]
	}
	user := &models.User{
		Username:       username,
		Email:          fmt.Sprintf("%s@%s", username, f.faker.DomainName()),
		Password:       f.pwHash,
		Bio:            f.faker.Sentence(10),
		ProfilePicture: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// BuildPost returns an unsaved post by author with a created_at spread
// over the last opts.MaxDays days. Roughly a third of posts carry an image.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	age := time.Duration(f.faker.IntRange(0, maxDays*24*60)) * time.Minute

	post := &models.Post{
		Content:   f.faker.Paragraph(1, 3, 12, "\n"),
		UserID:    author.ID,
		Privacy:   f.privacy(),
		CreatedAt: f.now().Add(-age),
	}
	if f.faker.IntRange(0, 2) == 0 {
		post.MediaURLs = []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())}
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildComment returns an unsaved comment by author on post.
func (f *Factory) BuildComment(author *models.User, post *models.Post) *models.Comment {
	return &models.Comment{
		Content: f.faker.Sentence(f.faker.IntRange(3, 14)),
		UserID:  author.ID,
		PostID:  post.ID,
	}
}

// privacy is weighted toward public posts so the feed has content.
func (f *Factory) privacy() models.Privacy {
	switch n := f.faker.IntRange(1, 10); {
	case n <= 6:
		return models.PrivacyPublic
	case n <= 9:
		return models.PrivacyFriends
	default:
		return models.PrivacyPrivate
	}
}

// Pick returns k distinct indexes from [0, n) in random order.
func (f *Factory) Pick(n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleAnySlice(idx)
	return idx[:k]
}

// IntRange is a random int in [lo, hi].
func (f *Factory) IntRange(lo, hi int) int {
	return f.faker.IntRange(lo, hi)
}

func (f *Factory) now() time.Time {
	if f.opts.Now != nil {
		return f.opts.Now()
	}
	return time.Now()
}

func hashPassword(password string, fast bool) (string, error) {
	cost := bcrypt.DefaultCost
	if fast {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
