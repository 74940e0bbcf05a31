package api

import (
	"net/http"
	"sort"

	"github.com/org/barrel/internal/authz"
	"github.com/org/barrel/internal/directory"
	"github.com/org/barrel/pkg/models"
	"github.com/rs/zerolog/log"
)

// GroupedMembersHandler handles GET /api/groupedmembers. Registers come
// back sorted by name, each holding its listed members ordered by joining
// year, last name, first name. A member DN on a register that does not
// resolve to an entry is a directory integrity fault and fails the request.
func (s *Server) GroupedMembersHandler(w http.ResponseWriter, r *http.Request) {
	principal := principalFromCtx(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !authz.Allowed(principal, s.roles.MemberAccess) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	registers, err := s.dir.Registers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("listing registers")
		writeError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}

	for _, reg := range registers {
		members := make([]*models.Member, 0, len(reg.AllMembers))
		for _, dn := range reg.AllMembers {
			username, err := directory.UsernameFromDN(dn)
			if err != nil {
				log.Error().Str("dn", dn).Str("register", reg.Name).Msg("register references malformed DN")
				writeError(w, http.StatusInternalServerError, "directory integrity fault")
				return
			}
			member, err := s.dir.MemberByUsername(r.Context(), username)
			if err != nil {
				log.Error().Err(err).Str("username", username).Str("register", reg.Name).Msg("register references unknown member")
				writeError(w, http.StatusInternalServerError, "directory integrity fault")
				return
			}
			if !member.Listed {
				continue
			}
			members = append(members, member)
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].Compare(members[j]) < 0
		})
		reg.Members = members
	}
	sort.Slice(registers, func(i, j int) bool {
		return registers[i].Name < registers[j].Name
	})

	writeJSON(w, http.StatusOK, map[string]any{"registers": registers})
}
