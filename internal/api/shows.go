package api

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"autoxdcc/internal/services"
	"autoxdcc/internal/state"
)

// DefaultResolution is used when a show is added without one.
const DefaultResolution = 1080

var (
	resolutionPattern = regexp.MustCompile(`^(?i)[0-9]{3,4}p?$`)
	validate          = mustValidator()
)

// mustValidator builds the request validator with the custom rules
// registered. It panics if a rule cannot be registered.
func mustValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
		return resolutionPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	}); err != nil {
		panic(fmt.Sprintf("register resolution validation: %v", err))
	}
	return v
}

// ParseResolution accepts "1080", "1080p" or "720P".
func ParseResolution(value string) (int, error) {
	value = strings.TrimSpace(value)
	if !resolutionPattern.MatchString(value) {
		return 0, fmt.Errorf("%w: invalid resolution %q", services.ErrValidation, value)
	}
	n, err := strconv.Atoi(strings.TrimRight(strings.ToLower(value), "p"))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid resolution %q", services.ErrValidation, value)
	}
	return n, nil
}

// Validate checks req against its field rules.
func (req ShowRequest) Validate() error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", services.ErrValidation, strings.ToLower(first.Field()), first.Tag())
		}
		return fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	return nil
}

// ShowStore abstracts the subscription persistence the service needs.
type ShowStore interface {
	ListSubscriptions(ctx context.Context, archived bool) ([]state.Show, error)
	FindSubscriptions(ctx context.Context, query string, archived bool) ([]state.Show, error)
	ResolveSubscription(ctx context.Context, query string, archived bool) (*state.Show, error)
	Subscription(ctx context.Context, name string) (*state.Show, error)
	PutSubscription(ctx context.Context, show state.Show) error
	RemoveSubscription(ctx context.Context, name string) (bool, error)
	SetArchived(ctx context.Context, name string, archived bool) (bool, error)
}

// ShowService exposes show operations returning API DTOs.
type ShowService struct {
	store ShowStore
}

// NewShowService constructs a ShowService around the provided store.
func NewShowService(store ShowStore) *ShowService {
	if store == nil {
		return nil
	}
	return &ShowService{store: store}
}

var errNoStore = fmt.Errorf("%w: show store unavailable", services.ErrConfiguration)

// List returns active or archived shows. A non-empty query narrows the list
// to partial, case- and space-insensitive matches.
func (s *ShowService) List(ctx context.Context, archived bool, query string) ([]Show, error) {
	if s == nil || s.store == nil {
		return nil, errNoStore
	}
	var (
		shows []state.Show
		err   error
	)
	if strings.TrimSpace(query) == "" {
		shows, err = s.store.ListSubscriptions(ctx, archived)
	} else {
		shows, err = s.store.FindSubscriptions(ctx, query, archived)
	}
	if err != nil {
		return nil, err
	}
	return FromShows(shows), nil
}

// Add registers a show under its exact name, replacing any previous entry.
func (s *ShowService) Add(ctx context.Context, req ShowRequest) (ShowChange, error) {
	if s == nil || s.store == nil {
		return ShowChange{}, errNoStore
	}
	if err := req.Validate(); err != nil {
		return ShowChange{}, err
	}
	show := state.Show{
		Name:       strings.TrimSpace(req.Name),
		Resolution: DefaultResolution,
	}
	if req.Resolution != "" {
		res, err := ParseResolution(req.Resolution)
		if err != nil {
			return ShowChange{}, err
		}
		show.Resolution = res
	}
	if req.Episode != nil {
		ep := *req.Episode
		show.LastEpisode = &ep
	}
	if req.Directory != nil && strings.TrimSpace(*req.Directory) != "/" {
		show.Subdirectory = strings.TrimSpace(*req.Directory)
	}
	if err := s.store.PutSubscription(ctx, show); err != nil {
		return ShowChange{}, err
	}
	return s.reload(ctx, show.Name, []string{"added"})
}

// Update changes the fields req sets on the single active show matching
// req.Name.
func (s *ShowService) Update(ctx context.Context, req ShowRequest) (ShowChange, error) {
	if s == nil || s.store == nil {
		return ShowChange{}, errNoStore
	}
	if err := req.Validate(); err != nil {
		return ShowChange{}, err
	}
	show, err := s.store.ResolveSubscription(ctx, req.Name, false)
	if err != nil {
		return ShowChange{}, err
	}

	var changes []string
	if req.Episode != nil && (show.LastEpisode == nil || *show.LastEpisode != *req.Episode) {
		ep := *req.Episode
		show.LastEpisode = &ep
		changes = append(changes, fmt.Sprintf("episode %d", ep))
	}
	if req.Resolution != "" {
		res, err := ParseResolution(req.Resolution)
		if err != nil {
			return ShowChange{}, err
		}
		if res != show.Resolution {
			show.Resolution = res
			changes = append(changes, fmt.Sprintf("resolution %dp", res))
		}
	}
	if req.Directory != nil {
		dir := strings.TrimSpace(*req.Directory)
		if dir == "/" {
			dir = ""
		}
		if dir != show.Subdirectory {
			show.Subdirectory = dir
			if dir == "" {
				changes = append(changes, "main directory")
			} else {
				changes = append(changes, "subdirectory "+dir)
			}
		}
	}
	if len(changes) == 0 {
		return ShowChange{Show: FromShow(*show)}, nil
	}
	if err := s.store.PutSubscription(ctx, *show); err != nil {
		return ShowChange{}, err
	}
	return s.reload(ctx, show.Name, changes)
}

// Remove deletes the single active show matching query.
func (s *ShowService) Remove(ctx context.Context, query string) (ShowChange, error) {
	if s == nil || s.store == nil {
		return ShowChange{}, errNoStore
	}
	show, err := s.store.ResolveSubscription(ctx, query, false)
	if err != nil {
		return ShowChange{}, err
	}
	if _, err := s.store.RemoveSubscription(ctx, show.Name); err != nil {
		return ShowChange{}, err
	}
	return ShowChange{Show: FromShow(*show), Changes: []string{"removed"}}, nil
}

// Archive moves the single active show matching query to the archive.
func (s *ShowService) Archive(ctx context.Context, query string) (ShowChange, error) {
	return s.setArchived(ctx, query, true)
}

// Restore moves the single archived show matching query back.
func (s *ShowService) Restore(ctx context.Context, query string) (ShowChange, error) {
	return s.setArchived(ctx, query, false)
}

func (s *ShowService) setArchived(ctx context.Context, query string, archived bool) (ShowChange, error) {
	if s == nil || s.store == nil {
		return ShowChange{}, errNoStore
	}
	show, err := s.store.ResolveSubscription(ctx, query, !archived)
	if err != nil {
		return ShowChange{}, err
	}
	if _, err := s.store.SetArchived(ctx, show.Name, archived); err != nil {
		return ShowChange{}, err
	}
	change := "restored"
	if archived {
		change = "archived"
	}
	return s.reload(ctx, show.Name, []string{change})
}

func (s *ShowService) reload(ctx context.Context, name string, changes []string) (ShowChange, error) {
	show, err := s.store.Subscription(ctx, name)
	if err != nil {
		return ShowChange{}, err
	}
	if show == nil {
		return ShowChange{}, services.Wrap(services.ErrNotFound, "api", "reload show", fmt.Sprintf("show %q vanished", name), nil)
	}
	return ShowChange{Show: FromShow(*show), Changes: changes}, nil
}
