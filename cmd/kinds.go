package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/isometry/entrysync/internal/directory"
	"github.com/isometry/entrysync/internal/entry"
	"github.com/isometry/entrysync/internal/ldap"
	"github.com/isometry/entrysync/internal/mapper"
)

// kind binds one directory object type to the operations the commands run.
type kind struct {
	load     func(ctx context.Context, s *ldap.Session, dn string) (any, error)
	describe func(ctx context.Context, s *ldap.Session, dn, description string, dryRun bool) (*entry.ModifyRequest, error)
}

var kinds = map[string]func(baseDN string) kind{
	"user": func(baseDN string) kind {
		return newKind(directory.NewUserMapper(baseDN), func(u *directory.User, d string) { u.Description = d })
	},
	"group": func(baseDN string) kind {
		return newKind(directory.NewGroupMapper(baseDN), func(g *directory.Group, d string) { g.Description = d })
	},
	"ou": func(baseDN string) kind {
		return newKind(directory.NewOUMapper(baseDN), func(ou *directory.OrganizationalUnit, d string) { ou.Description = d })
	},
}

func kindNames() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookupKind(name, baseDN string) (kind, error) {
	build, ok := kinds[strings.ToLower(name)]
	if !ok {
		return kind{}, fmt.Errorf("unknown kind %q (expected one of %s)", name, strings.Join(kindNames(), ", "))
	}
	return build(baseDN), nil
}

func newKind[T any](m *mapper.Mapper[T], setDescription func(T, string)) kind {
	return kind{
		load: func(ctx context.Context, s *ldap.Session, dn string) (any, error) {
			return ldap.Load[T](ctx, s, m, dn)
		},
		describe: func(ctx context.Context, s *ldap.Session, dn, description string, dryRun bool) (*entry.ModifyRequest, error) {
			obj, err := ldap.Load[T](ctx, s, m, dn)
			if err != nil {
				return nil, err
			}
			setDescription(obj, description)

			if !dryRun {
				return ldap.Sync[T](ctx, s, m, obj)
			}

			current, err := s.Fetch(ctx, dn, ldap.FetchOptions{
				Attributes: m.Attributes(),
				Binary:     m.BinaryAttributes(),
			})
			if err != nil {
				return nil, err
			}
			return mapper.ModifyRequest[T](m, obj, current)
		},
	}
}
