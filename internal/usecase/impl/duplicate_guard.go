package impl

import (
	"context"
	"log/slog"

	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"

	"github.com/pkg/errors"
)

// checkDuplicateFamily rejects a household whose (surname, phone, address) is already
// registered. Matching is exact; the unique index in storage remains the final arbiter.
func checkDuplicateFamily(ctx context.Context, families repository.FamilyRepository, surname, phone, address string) error {
	existing, err := families.FindByIdentity(ctx, surname, phone, address)
	if errors.Is(err, repository.ErrFamilyNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to check for duplicate family")
	}

	return duplicateFamilyError(existing)
}

// checkIdentityAvailable rejects a profile change that would take the identity of another family.
func checkIdentityAvailable(ctx context.Context, families repository.FamilyRepository, family *entity.Family) error {
	existing, err := families.FindByIdentity(ctx, family.Surname, family.Phone, family.Address)
	if errors.Is(err, repository.ErrFamilyNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to check for duplicate family")
	}
	if existing.ID == family.ID {
		return nil
	}

	return duplicateFamilyError(existing)
}

func duplicateFamilyError(existing *entity.Family) error {
	if existing == nil {
		return domainerrors.ErrDuplicateFamily
	}

	return domainerrors.ErrDuplicateFamily.WithDetails(map[string]any{
		"existingFamilyId":   existing.ID,
		"existingFamilyCode": existing.Code,
	})
}

// resolveDuplicateViolation turns a unique-index rejection of the family insert into the
// conflict error, looking up the winning row in a fresh transaction.
// Other errors are returned unchanged.
func resolveDuplicateViolation(
	ctx context.Context,
	txManager repository.TransactionManager,
	logger *slog.Logger,
	family familyIdentity,
	err error,
) error {
	if !errors.Is(err, repository.ErrDuplicateFamily) {
		return err
	}

	var existing *entity.Family
	lookupErr := txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, findErr := repoFactory.FamilyRepo().FindByIdentity(ctx, family.Surname, family.Phone, family.Address)
		if findErr != nil {
			return findErr
		}
		existing = found

		return nil
	})
	if lookupErr != nil {
		logger.Warn("Failed to load family that won the duplicate race", slog.Any("error", lookupErr))
	}

	return duplicateFamilyError(existing)
}

// familyIdentity is the natural key of a household.
type familyIdentity struct {
	Surname string
	Phone   string
	Address string
}

func familyIdentityOf(family *entity.Family) familyIdentity {
	return familyIdentity{
		Surname: family.Surname,
		Phone:   family.Phone,
		Address: family.Address,
	}
}
