package counting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"countingchain/core/contract"
	"countingchain/core/types"
	"countingchain/native/counting/legacy"
)

func (h *harness) instantiateLegacy(code *legacy.Contract, counter uint64) {
	h.t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"counter":          counter,
		"minimal_donation": types.NewCoin("atom", 10),
	})
	require.NoError(h.t, err)
	_, err = code.Instantiate(h.deps, h.env, contract.MessageInfo{Sender: h.owner}, raw)
	require.NoError(h.t, err)
}

func (h *harness) migrate() (*contract.Response, error) {
	return h.c.Migrate(h.deps, h.env, []byte(`{}`))
}

func requireMigratedAccount(t *testing.T, h *harness, counter uint64) {
	t.Helper()
	acc, err := LoadAccount(h.deps.State)
	require.NoError(t, err)
	require.Equal(t, counter, acc.Counter)
	require.Equal(t, h.owner.String(), acc.Owner)
	require.Equal(t, "10atom", acc.Threshold.String())
	require.Nil(t, acc.CascadeRemaining)

	version, err := h.deps.State.GetContractVersion()
	require.NoError(t, err)
	require.Equal(t, ContractVersion, version.Version)
}

func TestMigrateFromLegacyVersions(t *testing.T) {
	for _, code := range []*legacy.Contract{legacy.V010(), legacy.V020()} {
		t.Run(code.Version(), func(t *testing.T) {
			h := newHarness(t)
			h.instantiateLegacy(code, 3)

			resp, err := h.migrate()
			require.NoError(t, err)
			from, _ := resp.Attr(AttrFromVersion)
			require.Equal(t, code.Version(), from)
			requireMigratedAccount(t, h, 3)

			// the migrated contract keeps working
			h.donate(h.owner, coins(t, "10atom"))
			require.Equal(t, uint64(4), h.value())
		})
	}
}

func TestMigrateTwiceIsIdempotent(t *testing.T) {
	for _, code := range []*legacy.Contract{legacy.V010(), legacy.V020()} {
		t.Run(code.Version(), func(t *testing.T) {
			h := newHarness(t)
			h.instantiateLegacy(code, 5)

			_, err := h.migrate()
			require.NoError(t, err)
			first := h.digest()

			resp, err := h.migrate()
			require.NoError(t, err)
			require.Empty(t, resp.Attributes)
			require.Equal(t, first, h.digest())
			requireMigratedAccount(t, h, 5)
		})
	}
}

func TestMigrateRetriesAfterInterruptedUpgrade(t *testing.T) {
	h := newHarness(t)
	h.instantiateLegacy(legacy.V020(), 9)

	// the new record landed but the version tag still says 0.2.0
	require.NoError(t, saveAccount(h.deps.State, &Account{Counter: 9, Threshold: types.NewCoin("atom", 10), Owner: h.owner.String()}))

	_, err := h.migrate()
	require.NoError(t, err)
	requireMigratedAccount(t, h, 9)
}

func TestMigrateAtCurrentVersionIsNoop(t *testing.T) {
	h := newHarness(t)
	h.instantiate(InstantiateMsg{Counter: uint64Ptr(2), MinimalDonation: types.NewCoin("atom", 10)})
	before := h.digest()

	resp, err := h.migrate()
	require.NoError(t, err)
	require.Empty(t, resp.Messages)
	require.Equal(t, before, h.digest())
}

func TestMigrateRejectsUnknownVersion(t *testing.T) {
	h := newHarness(t)
	h.instantiateLegacy(legacy.V020(), 1)
	require.NoError(t, h.deps.State.SetContractVersion(ContractName, "0.0.9"))
	before := h.digest()

	_, err := h.migrate()
	require.ErrorIs(t, err, ErrInvalidContractVersion)
	var versionErr *InvalidContractVersionError
	require.ErrorAs(t, err, &versionErr)
	require.Equal(t, "0.0.9", versionErr.Version)
	require.Equal(t, before, h.digest())
}

func TestMigrateRejectsForeignContract(t *testing.T) {
	h := newHarness(t)
	h.instantiateLegacy(legacy.V010(), 1)
	require.NoError(t, h.deps.State.SetContractVersion("other-contract", legacy.VersionV010))
	before := h.digest()

	_, err := h.migrate()
	require.ErrorIs(t, err, ErrInvalidContract)
	var contractErr *InvalidContractError
	require.ErrorAs(t, err, &contractErr)
	require.Equal(t, "other-contract", contractErr.Contract)
	require.Equal(t, before, h.digest())
}

func TestMigrateWithoutVersionRecord(t *testing.T) {
	h := newHarness(t)
	_, err := h.migrate()
	require.ErrorIs(t, err, ErrStateNotFound)
}
