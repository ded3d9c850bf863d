package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sumire/federation/internal/domain"
)

type githubUser struct {
	ID        json.Number `json:"id"`
	Login     string      `json:"login"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	AvatarURL string      `json:"avatar_url"`
	Location  string      `json:"location"`
	Blog      string      `json:"blog"`
}

// NormalizeGitHub reads the document returned by GET /user.
func NormalizeGitHub(_ context.Context, payload []byte) (domain.ProviderProfile, error) {
	var u githubUser
	if err := decode(domain.ProviderGitHub, payload, &u); err != nil {
		return domain.ProviderProfile{}, err
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return finish(domain.ProviderProfile{
		Kind:        domain.ProviderGitHub,
		SubjectID:   u.ID.String(),
		Email:       u.Email,
		DisplayName: name,
		Picture:     u.AvatarURL,
		Location:    u.Location,
		Website:     u.Blog,
	})
}

type googleUser struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Gender  string `json:"gender"`
}

// NormalizeGoogle reads an OpenID Connect userinfo document. The legacy v2
// "id" field is accepted when "sub" is absent.
func NormalizeGoogle(_ context.Context, payload []byte) (domain.ProviderProfile, error) {
	var u googleUser
	if err := decode(domain.ProviderGoogle, payload, &u); err != nil {
		return domain.ProviderProfile{}, err
	}
	subject := u.Sub
	if subject == "" {
		subject = u.ID
	}
	return finish(domain.ProviderProfile{
		Kind:        domain.ProviderGoogle,
		SubjectID:   subject,
		Email:       u.Email,
		DisplayName: u.Name,
		Picture:     u.Picture,
		Gender:      u.Gender,
	})
}

type namedPlace struct {
	Name string `json:"name"`
}

type facebookUser struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Gender   string      `json:"gender"`
	Location *namedPlace `json:"location"`
}

// NormalizeFacebook reads a Graph API /me document. Facebook serves the
// picture from a stable per-user URL, so it is derived from the id.
func NormalizeFacebook(_ context.Context, payload []byte) (domain.ProviderProfile, error) {
	var u facebookUser
	if err := decode(domain.ProviderFacebook, payload, &u); err != nil {
		return domain.ProviderProfile{}, err
	}
	p := domain.ProviderProfile{
		Kind:        domain.ProviderFacebook,
		SubjectID:   u.ID,
		Email:       u.Email,
		DisplayName: u.Name,
		Gender:      u.Gender,
	}
	if u.ID != "" {
		p.Picture = "https://graph.facebook.com/" + u.ID + "/picture?type=large"
	}
	if u.Location != nil {
		p.Location = u.Location.Name
	}
	return finish(p)
}

type linkedinUser struct {
	ID               string      `json:"id"`
	FormattedName    string      `json:"formattedName"`
	FirstName        string      `json:"firstName"`
	LastName         string      `json:"lastName"`
	EmailAddress     string      `json:"emailAddress"`
	Location         *namedPlace `json:"location"`
	PictureURL       string      `json:"pictureUrl"`
	PublicProfileURL string      `json:"publicProfileUrl"`
}

// NormalizeLinkedIn reads a people profile document.
func NormalizeLinkedIn(_ context.Context, payload []byte) (domain.ProviderProfile, error) {
	var u linkedinUser
	if err := decode(domain.ProviderLinkedIn, payload, &u); err != nil {
		return domain.ProviderProfile{}, err
	}
	name := u.FormattedName
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	p := domain.ProviderProfile{
		Kind:        domain.ProviderLinkedIn,
		SubjectID:   u.ID,
		Email:       u.EmailAddress,
		DisplayName: name,
		Picture:     u.PictureURL,
		Website:     u.PublicProfileURL,
	}
	if u.Location != nil {
		p.Location = u.Location.Name
	}
	return finish(p)
}

type instagramEnvelope struct {
	Data struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		FullName       string `json:"full_name"`
		ProfilePicture string `json:"profile_picture"`
		Website        string `json:"website"`
	} `json:"data"`
}

// NormalizeInstagram reads a users/self document. Instagram never discloses
// an email, so one is synthesized from the username.
func NormalizeInstagram(_ context.Context, payload []byte) (domain.ProviderProfile, error) {
	var env instagramEnvelope
	if err := decode(domain.ProviderInstagram, payload, &env); err != nil {
		return domain.ProviderProfile{}, err
	}
	u := env.Data
	return finish(domain.ProviderProfile{
		Kind:        domain.ProviderInstagram,
		SubjectID:   u.ID,
		Email:       placeholderEmail(u.Username, domain.ProviderInstagram),
		DisplayName: u.FullName,
		Picture:     u.ProfilePicture,
		Website:     u.Website,
	})
}

type twitterUser struct {
	ID              json.Number `json:"id"`
	IDStr           string      `json:"id_str"`
	ScreenName      string      `json:"screen_name"`
	Name            string      `json:"name"`
	Location        string      `json:"location"`
	ProfileImageURL string      `json:"profile_image_url_https"`
}

// NormalizeTwitter reads an account/verify_credentials document. Twitter does
// not provide an email; the screen name is unique, so it backs a placeholder.
func NormalizeTwitter(_ context.Context, payload []byte) (domain.ProviderProfile, error) {
	var u twitterUser
	if err := decode(domain.ProviderTwitter, payload, &u); err != nil {
		return domain.ProviderProfile{}, err
	}
	subject := u.IDStr
	if subject == "" {
		subject = u.ID.String()
	}
	return finish(domain.ProviderProfile{
		Kind:        domain.ProviderTwitter,
		SubjectID:   subject,
		Email:       placeholderEmail(u.ScreenName, domain.ProviderTwitter),
		DisplayName: u.Name,
		Location:    u.Location,
		Picture:     u.ProfileImageURL,
	})
}
