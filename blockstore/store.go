// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockstore

import (
	"time"

	"github.com/brainwallet-co/core/chaincfg"
	"github.com/brainwallet-co/core/chainhash"
)

// AcceptResult names which of spec §4.4's nine acceptance cases applied
// to a block passed to Accept.
type AcceptResult int

const (
	ResultDropTooRecentHeader AcceptResult = iota // case 1
	ResultDropFilterPending                       // case 2
	ResultOrphan                                   // case 3
	ResultInvalid                                  // case 4
	ResultExtendsTip                               // case 5
	ResultAlreadyKnown                             // case 6
	ResultFutureOrphan                             // case 7
	ResultOldFork                                  // case 8
	ResultNewFork                                   // case 9 (includes reorg)
)

// WalletHook is the subset of the wallet the block store must be able to
// notify as blocks are accepted or reorganized away (spec §4.4 case 5 and
// case 9).
type WalletHook interface {
	// TxHeightChanged updates a wallet transaction's confirmation height
	// and timestamp; height == transaction.TxUnconfirmed rolls the tx
	// back to unconfirmed during a reorg.
	TxHeightChanged(hash chainhash.Hash, height int32, timestamp time.Time)
}

// Context carries the per-call state Accept needs beyond the store's own
// fields: whether the block arrived from the download peer, whether a
// sync is in progress, and the callbacks that cross into the peer and
// wallet layers (spec §4.4, §4.5).
type Context struct {
	FromDownloadPeer bool
	Syncing          bool

	// EarliestKeyTime anchors the too-recent test for header-only blocks
	// (spec §4.4 case 1); the orphan age limit of case 3 is measured from
	// the current time instead.
	EarliestKeyTime time.Time

	BloomFilterLoaded bool
	Behind            bool // we are behind the download peer's advertised tip

	Notify WalletHook

	// RequestLocator is invoked when the store needs a fresh getblocks
	// locator issued for the orphan's parent thread (case 3).
	RequestLocator func(locator []chainhash.Hash)

	// RescheduleSyncTimeout is invoked on a filter-pending drop from the
	// download peer while we are behind (case 2).
	RescheduleSyncTimeout func()

	// MarkMisbehaving is invoked when a block is rejected as invalid
	// (case 4); the caller maps this to its own peer handle.
	MarkMisbehaving func()
}

// Store holds the three hashed sets of spec §3 ("Block Store"). It is
// not internally synchronized: per spec §5 it is manipulated only under
// the Peer Manager's single coarse lock.
type Store struct {
	params *chaincfg.Params

	// chain holds every block store has a parent for, keyed by its own
	// hash — this is "the chain" set (main chain plus known forks).
	chain map[chainhash.Hash]*MerkleBlock

	// orphans indexes parentless blocks by the previous-hash they are
	// waiting on, so a newly accepted block can find and promote its
	// waiting children.
	orphans     map[chainhash.Hash]*MerkleBlock
	orphanOrder []chainhash.Hash // insertion order, for bounding growth

	// checkpointBlocks indexes only the blocks at checkpoint heights,
	// including the synthetic blocks allocated at startup for
	// checkpoints the chain hasn't reached yet (spec §3 Ownership).
	checkpointBlocks map[int32]*MerkleBlock

	lastBlock  *MerkleBlock
	lastOrphan *MerkleBlock

	// MaxOrphans bounds the orphan set; spec §9 flags the source's
	// orphan growth as unbounded and asks the implementer to cap it.
	// The oldest orphan is evicted once the cap is reached.
	MaxOrphans int
}

const defaultMaxOrphans = 500

// New creates a Store seeded with the genesis block at height 0 and a
// synthetic MerkleBlock for every configured checkpoint (spec §3
// Ownership: "the synthetic checkpoint blocks it allocates at startup").
func New(params *chaincfg.Params, genesis *MerkleBlock) *Store {
	genesis.Height = 0
	s := &Store{
		params:           params,
		chain:            map[chainhash.Hash]*MerkleBlock{genesis.Hash(): genesis},
		orphans:          make(map[chainhash.Hash]*MerkleBlock),
		checkpointBlocks: make(map[int32]*MerkleBlock),
		lastBlock:        genesis,
		MaxOrphans:       defaultMaxOrphans,
	}
	for _, cp := range params.Checkpoints {
		s.checkpointBlocks[cp.Height] = &MerkleBlock{
			Height:    cp.Height,
			Timestamp: cp.Timestamp,
			Bits:      chaincfg.BigToCompact(cp.Target),
			hash:      cp.Hash,
			hashSet:   true,
		}
	}
	return s
}

// Tip returns the current chain tip.
func (s *Store) Tip() *MerkleBlock {
	return s.lastBlock
}

// BlockByHash looks up a block known to be on the chain (not an orphan).
func (s *Store) BlockByHash(h chainhash.Hash) (*MerkleBlock, bool) {
	b, ok := s.chain[h]
	return b, ok
}

// Accept implements the nine block-acceptance cases of spec §4.4.
func (s *Store) Accept(b *MerkleBlock, ctx Context) (AcceptResult, error) {
	// Case 1: header-only and implausibly recent.
	if b.IsFilterHeaderOnly() && b.Timestamp.After(ctx.EarliestKeyTime.Add(-2*time.Hour+7*24*time.Hour)) {
		return ResultDropTooRecentHeader, nil
	}

	// Case 2: filter reload pending.
	if !ctx.BloomFilterLoaded {
		if ctx.FromDownloadPeer && ctx.Behind && ctx.RescheduleSyncTimeout != nil {
			ctx.RescheduleSyncTimeout()
		}
		return ResultDropFilterPending, nil
	}

	parent, haveParent := s.chain[b.PrevBlock]

	// Case 3: no known parent -> orphan.
	if !haveParent {
		if b.Timestamp.Before(time.Now().Add(-7 * 24 * time.Hour)) {
			return ResultOrphan, nil // too old to bother keeping
		}
		if !ctx.Syncing && (s.lastOrphan == nil || s.lastOrphan.PrevBlock != b.PrevBlock) {
			if ctx.RequestLocator != nil {
				ctx.RequestLocator(s.Locator())
			}
		}
		log.Debugf("orphan block %v (prev %v unknown)", b.Hash(), b.PrevBlock)
		s.insertOrphan(b)
		return ResultOrphan, nil
	}

	candidateHeight := parent.Height + 1

	// Case 4: invalid (bad parent linkage/height or difficulty failure).
	if !s.verifyLinkage(b, parent, candidateHeight) {
		log.Warnf("rejecting invalid block %v at height %d", b.Hash(), candidateHeight)
		if ctx.MarkMisbehaving != nil {
			ctx.MarkMisbehaving()
		}
		return ResultInvalid, nil
	}
	b.Height = candidateHeight

	// Case 8: old fork, at or below the latest checkpoint.
	if cp := s.params.LatestCheckpoint(s.lastBlock.Height); cp != nil && b.Height <= cp.Height {
		if _, known := s.chain[b.Hash()]; !known {
			return ResultOldFork, nil
		}
	}

	// Case 5: extends tip directly.
	if b.PrevBlock == s.lastBlock.Hash() {
		s.chain[b.Hash()] = b
		s.lastBlock = b
		s.notifyConfirmed(b, ctx)
		s.promoteOrphans(b, ctx)
		return ResultExtendsTip, nil
	}

	// Case 6: already known on the main chain.
	if existing, ok := s.chain[b.Hash()]; ok {
		if existing.Height <= s.lastBlock.Height {
			s.notifyConfirmed(existing, ctx)
			return ResultAlreadyKnown, nil
		}
	}

	// Case 7: future orphan arriving while actively syncing.
	if ctx.Syncing && b.Height > s.lastBlock.Height+1 {
		s.insertOrphan(b)
		return ResultFutureOrphan, nil
	}

	// Case 9: new fork — insert, and reorg if it becomes the best chain.
	s.chain[b.Hash()] = b
	if b.Height > s.lastBlock.Height {
		log.Infof("reorganizing to fork tip %v at height %d", b.Hash(), b.Height)
		s.reorg(b, ctx)
		return ResultNewFork, nil
	}
	return ResultNewFork, nil
}

func (s *Store) notifyConfirmed(b *MerkleBlock, ctx Context) {
	if ctx.Notify == nil {
		return
	}
	for _, h := range b.MatchedTxHashes {
		ctx.Notify.TxHeightChanged(h, b.Height, b.Timestamp)
	}
}

// verifyLinkage implements spec §4.4's verifyBlock: linkage plus the
// difficulty-interval retarget check, walking prevBlock pointers in
// memory to find the window-start header.
func (s *Store) verifyLinkage(b, parent *MerkleBlock, height int32) bool {
	if b.PrevBlock != parent.Hash() || height != parent.Height+1 {
		return false
	}
	if cp := s.params.CheckpointAt(height); cp != nil && b.Hash() != cp.Hash {
		return false
	}

	if height%s.params.DifficultyInterval != 0 {
		return s.params.VerifyDifficulty(b, parent, nil)
	}

	windowStart := s.findAncestorAtHeight(parent, height-s.params.DifficultyInterval)
	if windowStart == nil {
		return false
	}
	ok := s.params.VerifyDifficulty(b, parent, windowStart)
	if ok {
		s.evictNonBoundaryWindow(parent, height-s.params.DifficultyInterval)
	}
	return ok
}

func (s *Store) findAncestorAtHeight(from *MerkleBlock, height int32) *MerkleBlock {
	iter := from
	for iter != nil && iter.Height > height {
		parent, ok := s.chain[iter.PrevBlock]
		if !ok {
			return nil
		}
		iter = parent
	}
	if iter != nil && iter.Height == height {
		return iter
	}
	return nil
}

// evictNonBoundaryWindow frees blocks walked during a difficulty check
// whose height is not itself a difficulty boundary, bounding memory
// (spec §4.4 "Memory discipline").
func (s *Store) evictNonBoundaryWindow(from *MerkleBlock, windowStartHeight int32) {
	iter := from
	for iter != nil && iter.Height > windowStartHeight {
		parent, ok := s.chain[iter.PrevBlock]
		if iter.Height%s.params.DifficultyInterval != 0 && iter.Height != s.lastBlock.Height {
			delete(s.chain, iter.Hash())
		}
		if !ok {
			break
		}
		iter = parent
	}
}

func (s *Store) insertOrphan(b *MerkleBlock) {
	if len(s.orphanOrder) >= s.MaxOrphans {
		oldest := s.orphanOrder[0]
		s.orphanOrder = s.orphanOrder[1:]
		delete(s.orphans, oldest)
	}
	s.orphans[b.PrevBlock] = b
	s.orphanOrder = append(s.orphanOrder, b.PrevBlock)
	s.lastOrphan = b
}

// promoteOrphans moves any orphan now directly extending the tip into
// the chain, recursively.
func (s *Store) promoteOrphans(tip *MerkleBlock, ctx Context) {
	for {
		child, ok := s.orphans[tip.Hash()]
		if !ok {
			return
		}
		delete(s.orphans, tip.Hash())
		child.Height = tip.Height + 1
		s.chain[child.Hash()] = child
		s.lastBlock = child
		s.notifyConfirmed(child, ctx)
		tip = child
	}
}

// reorg implements spec §4.4 case 9: walk both chains back to their
// common ancestor, roll back wallet confirmations on the abandoned
// blocks, then replay the new chain's heights forward.
func (s *Store) reorg(newTip *MerkleBlock, ctx Context) {
	oldTip := s.lastBlock

	oldChain := []*MerkleBlock{oldTip}
	newChain := []*MerkleBlock{newTip}

	o, n := oldTip, newTip
	for o.Height > n.Height {
		o = s.chain[o.PrevBlock]
		oldChain = append(oldChain, o)
	}
	for n.Height > o.Height {
		n = s.chain[n.PrevBlock]
		newChain = append(newChain, n)
	}
	for o.Hash() != n.Hash() {
		o = s.chain[o.PrevBlock]
		n = s.chain[n.PrevBlock]
		oldChain = append(oldChain, o)
		newChain = append(newChain, n)
	}
	ancestor := o

	if ctx.Notify != nil {
		for i := len(oldChain) - 2; i >= 0; i-- {
			for _, h := range oldChain[i].MatchedTxHashes {
				ctx.Notify.TxHeightChanged(h, txUnconfirmedSentinel, time.Time{})
			}
		}
	}

	height := ancestor.Height
	for i := len(newChain) - 2; i >= 0; i-- {
		height++
		newChain[i].Height = height
		s.notifyConfirmed(newChain[i], ctx)
	}

	s.lastBlock = newTip
}

// txUnconfirmedSentinel mirrors transaction.TxUnconfirmed without
// importing the transaction package, avoiding an import cycle (the
// wallet package, which imports both, is the real consumer of the
// WalletHook contract).
const txUnconfirmedSentinel = int32(1<<31 - 1)

// Locator builds a getblocks/getheaders locator (spec §4.4): step 1 for
// 10 hashes back from the tip, then doubling, terminating with genesis.
func (s *Store) Locator() []chainhash.Hash {
	var locator []chainhash.Hash
	step := int32(1)
	cur := s.lastBlock
	for cur != nil {
		locator = append(locator, cur.Hash())
		if cur.Height == 0 {
			break
		}
		if len(locator) >= 10 {
			step *= 2
		}
		target := cur.Height - step
		if target < 0 {
			target = 0
		}
		next := s.findAncestorAtHeight(cur, target)
		if next == nil {
			break
		}
		cur = next
	}
	return locator
}
