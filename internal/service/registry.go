package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bloodbank/internal/domain"
)

func validateHospital(h domain.Hospital) error {
	switch {
	case strings.TrimSpace(h.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidHospital)
	case strings.TrimSpace(h.Address) == "":
		return fmt.Errorf("%w: address is required", domain.ErrInvalidHospital)
	case !h.Type.Valid():
		return fmt.Errorf("%w: unknown hospital type %q", domain.ErrInvalidHospital, h.Type)
	case strings.TrimSpace(h.PhoneNumber1) == "":
		return fmt.Errorf("%w: phone_number1 is required", domain.ErrInvalidHospital)
	case h.PhoneNumber2 != "" && h.PhoneNumber2 == h.PhoneNumber1:
		return fmt.Errorf("%w: phone numbers must differ", domain.ErrInvalidHospital)
	case !strings.Contains(h.Email, "@"):
		return fmt.Errorf("%w: email is invalid", domain.ErrInvalidHospital)
	}
	return nil
}

func (c *Coordinator) CreateHospital(ctx context.Context, h domain.Hospital) (domain.Hospital, error) {
	if err := validateHospital(h); err != nil {
		return domain.Hospital{}, err
	}
	now := c.clock.Now()
	h.ID = uuid.NewString()
	h.CreatedAt = now
	h.UpdatedAt = now
	if err := c.store.CreateHospital(ctx, h); err != nil {
		return domain.Hospital{}, err
	}
	return h, nil
}

// UpdateHospital replaces the editable fields of an existing hospital.
func (c *Coordinator) UpdateHospital(ctx context.Context, h domain.Hospital) (domain.Hospital, error) {
	prev, err := c.store.GetHospital(ctx, h.ID)
	if err != nil {
		return domain.Hospital{}, err
	}
	if err := validateHospital(h); err != nil {
		return domain.Hospital{}, err
	}
	h.CreatedAt = prev.CreatedAt
	h.UpdatedAt = c.clock.Now()
	if err := c.store.UpdateHospital(ctx, h); err != nil {
		return domain.Hospital{}, err
	}
	return h, nil
}

func (c *Coordinator) GetHospital(ctx context.Context, id string) (domain.Hospital, error) {
	return c.store.GetHospital(ctx, id)
}

func (c *Coordinator) ListHospitals(ctx context.Context) ([]domain.Hospital, error) {
	return c.store.ListHospitals(ctx)
}

// SaveProfile writes back the identity provider's view of a user. Donors
// must carry a blood group.
func (c *Coordinator) SaveProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Username) == "" {
		return domain.Profile{}, fmt.Errorf("%w: id and username are required", domain.ErrInvalidProfile)
	}
	if p.BloodGroup != "" && !p.BloodGroup.Valid() {
		return domain.Profile{}, domain.ErrInvalidBloodGroup
	}
	if p.IsDonor && p.BloodGroup == "" {
		return domain.Profile{}, domain.ErrMissingBloodGroup
	}
	// A recipient stays a recipient.
	if prev, err := c.store.GetProfile(ctx, p.ID); err == nil && prev.IsRecipient {
		p.IsRecipient = true
	}
	if err := c.store.SaveProfile(ctx, p); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

func (c *Coordinator) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return c.store.GetProfile(ctx, id)
}
