package repositories

// Repositories struct holds all repository interfaces. Every read goes
// through an explicit snapshot handle acquired by the caller, so all reads
// within one request see one consistent version of each table.
type Repositories struct {
	Directory   DirectoryRepository
	Attestation AttestationRepository
	Reference   ReferenceRepository
}

// NewRepositories creates and initializes all repositories.
func NewRepositories() *Repositories {
	return &Repositories{
		Directory:   NewDirectoryRepository(),
		Attestation: NewAttestationRepository(),
		Reference:   NewReferenceRepository(),
	}
}
