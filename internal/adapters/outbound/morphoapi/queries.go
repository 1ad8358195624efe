package morphoapi

const marketsQuery = `query Markets($chainId: Int!, $first: Int!, $skip: Int!) {
  markets(first: $first, skip: $skip, where: { chainId_in: [$chainId] }) {
    items {
      uniqueKey
      loanAsset { address symbol decimals }
      collateralAsset { address symbol decimals }
    }
    pageInfo { count countTotal }
  }
}`

const marketQuery = `query Market($uniqueKey: String!, $chainId: Int) {
  marketByUniqueKey(uniqueKey: $uniqueKey, chainId: $chainId) {
    uniqueKey
    lltv
    loanAsset { address symbol decimals }
    collateralAsset { address symbol decimals }
    state {
      supplyApy
      borrowApy
      supplyAssetsUsd
      borrowAssetsUsd
      liquidityAssetsUsd
      liquidityAssets
    }
  }
}`

const vaultFields = `
      address
      name
      symbol
      asset { address symbol decimals }
      state {
        totalAssets
        totalAssetsUsd
        totalSupply
        apy
        dailyApy
        weeklyApy
        monthlyApy
        yearlyApy
        allocation {
          market { uniqueKey }
          supplyAssets
          supplyCap
        }
      }`

const vaultsQuery = `query Vaults($chainId: Int!, $first: Int!, $skip: Int!) {
  vaults(first: $first, skip: $skip, where: { chainId_in: [$chainId], whitelisted: true }) {
    items {` + vaultFields + `
    }
    pageInfo { count countTotal }
  }
}`

const vaultQuery = `query Vault($address: String!, $chainId: Int) {
  vaultByAddress(address: $address, chainId: $chainId) {` + vaultFields + `
  }
}`

const userPositionsQuery = `query UserPositions($address: String!, $chainId: Int) {
  userByAddress(address: $address, chainId: $chainId) {
    marketPositions { market { uniqueKey } }
  }
}`
