package directory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// accountDisable is the ADS_UF_ACCOUNTDISABLE bit of userAccountControl
const accountDisable = 0x2

// GroupNameFromDN returns the value of the first RDN of a membership DN,
// e.g. "CN=Facilities,OU=Doors,DC=corp,DC=local" -> "Facilities".
func GroupNameFromDN(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("parse dn %q: %w", dn, err)
	}
	if len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
		return "", fmt.Errorf("dn %q has no relative name", dn)
	}
	name := strings.TrimSpace(parsed.RDNs[0].Attributes[0].Value)
	if name == "" {
		return "", fmt.Errorf("dn %q has an empty relative name", dn)
	}
	return name, nil
}

// GroupNames resolves every membership DN; any malformed value fails the whole set
func GroupNames(memberOf []string) ([]string, error) {
	names := make([]string, 0, len(memberOf))
	for _, dn := range memberOf {
		name, err := GroupNameFromDN(dn)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// AccountDisabled reports whether a userAccountControl value carries the
// disable flag. Both encodings seen in practice (514 for a normal disabled
// account, 66050 with DONT_EXPIRE_PASSWORD) set it. An absent value means enabled.
func AccountDisabled(userAccountControl string) (bool, error) {
	v := strings.TrimSpace(userAccountControl)
	if v == "" {
		return false, nil
	}
	flags, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse userAccountControl %q: %w", v, err)
	}
	return flags&accountDisable != 0, nil
}
