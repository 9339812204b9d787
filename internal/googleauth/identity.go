package googleauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	people "google.golang.org/api/people/v1"
	"google.golang.org/api/option"
)

// fetchIdentity resolves the signed-in account via the People API.
func fetchIdentity(ctx context.Context, ts oauth2.TokenSource) (*Identity, error) {
	svc, err := people.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create people service: %w", err)
	}

	person, err := svc.People.Get("people/me").
		PersonFields("names,emailAddresses,photos").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	identity := &Identity{ID: person.ResourceName}
	if len(person.Names) > 0 {
		identity.DisplayName = person.Names[0].DisplayName
	}
	if len(person.EmailAddresses) > 0 {
		identity.Email = person.EmailAddresses[0].Value
	}
	if len(person.Photos) > 0 {
		identity.AvatarURL = person.Photos[0].Url
	}

	return identity, nil
}
