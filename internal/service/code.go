package service

import (
	"regexp"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// External codes are one uppercase prefix letter followed by four digits.
// The prefix tags the account kind, so role and shape validate as a single
// decision instead of being re-parsed per module.
var codePattern = regexp.MustCompile(`^[A-Z][0-9]{4}$`)

var prefixRoles = map[byte]models.RoleTag{
	'T': models.RoleTeacher,
	'A': models.RoleTutor,
	'C': models.RoleCoordinator,
	'D': models.RoleAdmin,
	'G': models.RoleGeneralCoordinator,
	'X': models.RoleGeneralAdmin,
}

const studentPrefix = 'S'

// CodeClass is the outcome of classifying an external code.
type CodeClass struct {
	// Role is the role implied by the prefix; empty for student codes.
	Role models.RoleTag
	// Student marks a student code.
	Student bool
}

// ClassifyExternalCode validates the shape of an external code and resolves
// the account kind implied by its prefix. ok is false for malformed codes
// and unknown prefixes.
func ClassifyExternalCode(code string) (CodeClass, bool) {
	if !codePattern.MatchString(code) {
		return CodeClass{}, false
	}
	if code[0] == studentPrefix {
		return CodeClass{Student: true}, true
	}
	role, ok := prefixRoles[code[0]]
	if !ok {
		return CodeClass{}, false
	}
	return CodeClass{Role: role}, true
}
