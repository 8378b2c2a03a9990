package models

import "github.com/google/uuid"

// Native entity catalog. Ids are stable across installations so fetch
// records and credentials survive re-bootstraps.
var (
	MyInvestor = Entity{
		ID:             uuid.MustParse("e0000000-0000-0000-0000-000000000001"),
		Name:           "MyInvestor",
		Type:           EntityTypeFinancialInstitution,
		Origin:         EntityOriginNative,
		IsReal:         true,
		Features:       []Feature{FeaturePosition, FeatureAutoContributions, FeatureTransactions},
		SetupLoginType: SetupLoginAutomated,
		PinPositions:   6,
		CredentialsTemplate: map[string]CredentialType{
			"user":     CredentialID,
			"password": CredentialPassword,
		},
	}

	Unicaja = Entity{
		ID:             uuid.MustParse("e0000000-0000-0000-0000-000000000002"),
		Name:           "Unicaja",
		Type:           EntityTypeFinancialInstitution,
		Origin:         EntityOriginNative,
		IsReal:         true,
		Features:       []Feature{FeaturePosition},
		SetupLoginType: SetupLoginManual,
		CredentialsTemplate: map[string]CredentialType{
			"user":     CredentialID,
			"password": CredentialPassword,
			"abck":     CredentialInternal,
		},
	}

	Urbanitae = Entity{
		ID:             uuid.MustParse("e0000000-0000-0000-0000-000000000004"),
		Name:           "Urbanitae",
		Type:           EntityTypeFinancialInstitution,
		Origin:         EntityOriginNative,
		IsReal:         true,
		Features:       []Feature{FeaturePosition, FeatureTransactions, FeatureHistoric},
		SetupLoginType: SetupLoginAutomated,
		CredentialsTemplate: map[string]CredentialType{
			"user":     CredentialEmail,
			"password": CredentialPassword,
		},
	}

	Sego = Entity{
		ID:             uuid.MustParse("e0000000-0000-0000-0000-000000000006"),
		Name:           "SEGO",
		Type:           EntityTypeFinancialInstitution,
		Origin:         EntityOriginNative,
		IsReal:         true,
		Features:       []Feature{FeaturePosition, FeatureTransactions, FeatureHistoric},
		SetupLoginType: SetupLoginAutomated,
		PinPositions:   6,
		CredentialsTemplate: map[string]CredentialType{
			"user":     CredentialEmail,
			"password": CredentialPassword,
		},
	}

	EthereumWallet = Entity{
		ID:             uuid.MustParse("c0000000-0000-0000-0000-000000000001"),
		Name:           "Ethereum",
		Type:           EntityTypeCryptoWallet,
		Origin:         EntityOriginNative,
		IsReal:         true,
		Features:       []Feature{FeaturePosition},
		SetupLoginType: SetupLoginManual,
	}
)

// NativeEntities is the full static catalog loaded at bootstrap.
var NativeEntities = []Entity{
	MyInvestor,
	Unicaja,
	Urbanitae,
	Sego,
	EthereumWallet,
}

// NativeByID resolves a native entity, optionally restricted to a type.
func NativeByID(id uuid.UUID, entityType EntityType) (Entity, bool) {
	for _, e := range NativeEntities {
		if e.ID == id && (entityType == "" || e.Type == entityType) {
			return e, true
		}
	}
	return Entity{}, false
}
