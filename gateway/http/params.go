package http

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/c360/cse/resource"
)

// parseArguments decodes the oneM2M query parameters of one request. Unknown
// parameters become attribute filter conditions, matching how discovery treats
// arbitrary attribute names.
func parseArguments(values url.Values) (resource.Arguments, error) {
	args := resource.NewArguments()

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		first := vals[0]

		switch key {
		case "fu":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			args.FilterUsage = resource.FilterUsage(n)

		case "fo":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			switch resource.FilterOperation(n) {
			case resource.FilterOperationAND, resource.FilterOperationOR:
				args.FilterOperation = resource.FilterOperation(n)
			default:
				return args, fmt.Errorf("invalid filter operation: %s", first)
			}

		case "rcn":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			args.ResultContent = resource.ResultContent(n)

		case "drt":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			switch resource.DesiredIdentifierResultType(n) {
			case resource.IdentifierStructured, resource.IdentifierUnstructured:
				args.DesiredIdentifierResultType = resource.DesiredIdentifierResultType(n)
			default:
				return args, fmt.Errorf("invalid desired identifier result type: %s", first)
			}

		case "lvl":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			args.Level = n

		case "ofst":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			args.Offset = n

		case "lim":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			args.Limit = n

		case "arp":
			args.ARP = first

		case "ty":
			for _, v := range vals {
				n, err := atoi(key, v)
				if err != nil {
					return args, err
				}
				args.Criteria.Types = append(args.Criteria.Types, resource.Type(n))
			}

		case "cty":
			args.Criteria.ContentTypes = append(args.Criteria.ContentTypes, vals...)

		case "lbl":
			args.Criteria.Labels = append(args.Criteria.Labels, vals...)

		case "crb":
			args.Criteria.CreatedBefore = first
		case "cra":
			args.Criteria.CreatedAfter = first
		case "ms":
			args.Criteria.ModifiedSince = first
		case "us":
			args.Criteria.UnmodifiedSince = first
		case "sts":
			args.Criteria.StateTagSmaller = first
		case "stb":
			args.Criteria.StateTagBigger = first
		case "exb":
			args.Criteria.ExpireBefore = first
		case "exa":
			args.Criteria.ExpireAfter = first

		case "sza":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			args.Criteria.SizeAbove = n
		case "szb":
			n, err := atoi(key, first)
			if err != nil {
				return args, err
			}
			args.Criteria.SizeBelow = n

		default:
			if args.Criteria.Attributes == nil {
				args.Criteria.Attributes = map[string]string{}
			}
			args.Criteria.Attributes[key] = first
		}
	}

	return args, nil
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value for %s: %q", key, value)
	}
	return n, nil
}
