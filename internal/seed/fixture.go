package seed

import (
	"fmt"
	"os"
	"strings"

	"socialhub/internal/models"

	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written data set. cmd/seed loads one from YAML with
// -fixture; without it DemoFixture is used.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
}

// FixtureUser is one account together with its posts and outgoing follows.
type FixtureUser struct {
	Username       string        `yaml:"username"`
	Email          string        `yaml:"email"`
	Password       string        `yaml:"password"`
	Bio            string        `yaml:"bio"`
	ProfilePicture string        `yaml:"profile_picture"`
	Admin          bool          `yaml:"admin"`
	Follows        []string      `yaml:"follows"`
	Posts          []FixturePost `yaml:"posts"`
}

// FixturePost is dated relative to the moment the fixture is applied.
type FixturePost struct {
	Content string   `yaml:"content"`
	Privacy string   `yaml:"privacy"`
	DaysAgo int      `yaml:"days_ago"`
	Media   []string `yaml:"media"`
}

// DemoPassword is the password of every account in DemoFixture.
const DemoPassword = "password"

// DemoFixture is the default data set: one demo account with five public
// posts, one per day going back five days. Even-numbered posts carry an image.
func DemoFixture() *Fixture {
	demo := FixtureUser{
		Username:       "demouser",
		Email:          "demo@example.com",
		Password:       DemoPassword,
		Bio:            "This is a demo user account",
		ProfilePicture: "https://randomuser.me/api/portraits/men/1.jpg",
	}
	for i := 1; i <= 5; i++ {
		post := FixturePost{
			Content: fmt.Sprintf("This is sample post #%d from the demo user.", i),
			Privacy: string(models.PrivacyPublic),
			DaysAgo: i,
		}
		if i%2 == 0 {
			post.Media = []string{fmt.Sprintf("https://picsum.photos/id/%d/800/600", i*10)}
		}
		demo.Posts = append(demo.Posts, post)
	}
	return &Fixture{Users: []FixtureUser{demo}}
}

// LoadFixture reads and validates a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes YAML and checks that usernames are unique, follows
// name users in the same fixture and privacy levels are known.
func ParseFixture(raw []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	names := make(map[string]struct{}, len(fx.Users))
	for _, u := range fx.Users {
		key := strings.ToLower(strings.TrimSpace(u.Username))
		if key == "" {
			return fmt.Errorf("fixture user without username")
		}
		if _, dup := names[key]; dup {
			return fmt.Errorf("duplicate fixture user %q", u.Username)
		}
		if u.Password == "" {
			return fmt.Errorf("fixture user %q has no password", u.Username)
		}
		names[key] = struct{}{}
	}
	for _, u := range fx.Users {
		for _, target := range u.Follows {
			if _, ok := names[strings.ToLower(target)]; !ok {
				return fmt.Errorf("user %q follows unknown user %q", u.Username, target)
			}
			if strings.EqualFold(target, u.Username) {
				return fmt.Errorf("user %q cannot follow themselves", u.Username)
			}
		}
		for i, p := range u.Posts {
			if strings.TrimSpace(p.Content) == "" {
				return fmt.Errorf("post %d of %q has no content", i+1, u.Username)
			}
			if _, err := models.ParsePrivacy(p.Privacy); err != nil {
				return fmt.Errorf("post %d of %q: %w", i+1, u.Username, err)
			}
		}
	}
	return nil
}
