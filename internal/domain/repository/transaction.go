package repository

import "context"

// TransactionManager defines the interface for managing database transactions.
// This allows the use case layer to handle transactions without depending on a specific DB driver like GORM.
type TransactionManager interface {
	// Execute runs a function within a database transaction.
	// If the function returns an error, the transaction is rolled back. Otherwise, it's committed.
	// All repository operations within the function will use the same database transaction.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances bound to one transaction,
// plus savepoints for isolating a failing statement without losing the transaction.
type RepositoryFactory interface {
	FamilyRepo() FamilyRepository
	PersonRepo() PersonRepository
	AssociationRepo() AssociationRepository
	LocationRepo() LocationRepository
	DraftRepo() DraftRepository
	AuditRepo() AuditRepository

	// SavePoint marks a point the transaction can roll back to.
	SavePoint(ctx context.Context, name string) error
	// RollbackTo undoes everything after the named savepoint and keeps the transaction usable.
	RollbackTo(ctx context.Context, name string) error
}
